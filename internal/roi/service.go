package roi

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// High-risk threshold on churn probability: customers above it count toward
// potential savings.
const HighRiskThreshold = 0.5

// MetricsRow is the raw aggregate returned by the repository.
type MetricsRow struct {
	TotalAtRiskValue float64
	HighRiskCount    int64
	TotalCustomers   int64
	TotalBatches     int64
}

// BatchSavingRow is the per-batch aggregate returned by the repository.
type BatchSavingRow struct {
	BatchID          uuid.UUID
	BatchName        string
	PotentialSavings float64
	HighRiskCount    int64
	TotalCustomers   int64
	CreatedAt        time.Time
}

// SegmentRow is the per-risk-segment aggregate returned by the repository.
type SegmentRow struct {
	Segment string
	Value   float64
	Count   int64
}

// Repository exposes the aggregate queries the ROI service relies on.
type Repository interface {
	MetricsSummary(ctx context.Context, orgID uuid.UUID) (MetricsRow, error)
	BatchSavings(ctx context.Context, orgID uuid.UUID, limit int) ([]BatchSavingRow, error)
	RiskDistribution(ctx context.Context, orgID uuid.UUID) ([]SegmentRow, error)
}

// Service coordinates ROI query execution with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
