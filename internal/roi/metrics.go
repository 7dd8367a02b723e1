package roi

import (
	"context"

	"github.com/google/uuid"
)

// Metrics contains the headline ROI figures surfaced on the dashboard cards.
type Metrics struct {
	TotalRevenue           float64 `json:"totalRevenue"`
	TotalBatches           int64   `json:"total_batches"`
	TotalCustomersAnalyzed int64   `json:"total_customers_analyzed"`
	TotalHighRisk          int64   `json:"total_high_risk"`
	AvgBatchValue          float64 `json:"avg_batch_value"`
	AvgCustomerValue       float64 `json:"avg_customer_value"`
}

// GetMetrics resolves the headline metrics using cache-aware lookups.
//
// TotalRevenue is the summed monetary value of high-risk customers across all
// completed batches; averages derive from it and round to cents.
func (s *Service) GetMetrics(ctx context.Context, orgID uuid.UUID) (Metrics, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		row, err := s.repo.MetricsSummary(ctx, orgID)
		if err != nil {
			return Metrics{}, err
		}
		metrics := Metrics{
			TotalRevenue:           round2(row.TotalAtRiskValue),
			TotalBatches:           row.TotalBatches,
			TotalCustomersAnalyzed: row.TotalCustomers,
			TotalHighRisk:          row.HighRiskCount,
		}
		if row.TotalBatches > 0 {
			metrics.AvgBatchValue = round2(row.TotalAtRiskValue / float64(row.TotalBatches))
		}
		if row.HighRiskCount > 0 {
			metrics.AvgCustomerValue = round2(row.TotalAtRiskValue / float64(row.HighRiskCount))
		}
		return metrics, nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return Metrics{}, err
		}
		return value.(Metrics), nil
	}

	key, err := s.cache.BuildKey(ctx, keyMetrics(orgID))
	if err != nil {
		return Metrics{}, err
	}
	var metrics Metrics
	if err := s.cache.FetchJSON(ctx, key, &metrics, loader); err != nil {
		return Metrics{}, err
	}
	return metrics, nil
}
