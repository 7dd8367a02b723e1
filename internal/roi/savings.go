package roi

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSavingsLimit bounds the batch-savings query when no limit is given.
const DefaultSavingsLimit = 10

// MaxSavingsLimit is the hard ceiling accepted from callers.
const MaxSavingsLimit = 50

// BatchSaving is the savings summary for one prediction batch.
type BatchSaving struct {
	BatchID          uuid.UUID `json:"batch_id"`
	BatchName        string    `json:"batch_name"`
	PotentialSavings float64   `json:"potential_savings"`
	HighRiskCount    int64     `json:"high_risk_count"`
	TotalCustomers   int64     `json:"total_customers"`
	CreatedAt        time.Time `json:"created_at"`
}

// GetBatchSavings returns per-batch savings, newest batch first.
// The limit is clamped to [1, MaxSavingsLimit].
func (s *Service) GetBatchSavings(ctx context.Context, orgID uuid.UUID, limit int) ([]BatchSaving, error) {
	if limit <= 0 {
		limit = DefaultSavingsLimit
	}
	if limit > MaxSavingsLimit {
		limit = MaxSavingsLimit
	}

	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.BatchSavings(ctx, orgID, limit)
		if err != nil {
			return nil, err
		}
		savings := make([]BatchSaving, 0, len(rows))
		for _, row := range rows {
			savings = append(savings, BatchSaving{
				BatchID:          row.BatchID,
				BatchName:        row.BatchName,
				PotentialSavings: round2(row.PotentialSavings),
				HighRiskCount:    row.HighRiskCount,
				TotalCustomers:   row.TotalCustomers,
				CreatedAt:        row.CreatedAt,
			})
		}
		return savings, nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]BatchSaving), nil
	}

	key, err := s.cache.BuildKey(ctx, keySavings(orgID, limit))
	if err != nil {
		return nil, err
	}
	var savings []BatchSaving
	if err := s.cache.FetchJSON(ctx, key, &savings, loader); err != nil {
		return nil, err
	}
	return savings, nil
}
