package roi

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository provides PostgreSQL backed aggregates over prediction batches.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// monetaryValueExpr resolves the at-risk value for one prediction from its
// RFM feature payload. Predictions without a monetary_value fall back to a
// conservative estimate of five average transactions.
const monetaryValueExpr = `COALESCE(
	NULLIF(p.features->>'monetary_value', '')::float8,
	NULLIF(p.features->>'avg_transaction_value', '')::float8 * 5,
	0
)`

const metricsSummaryQuery = `
WITH at_risk AS (
	SELECT ` + monetaryValueExpr + ` AS monetary_value
	FROM customer_predictions p
	JOIN prediction_batches b ON b.id = p.batch_id
	WHERE b.organization_id = $1
	  AND b.status = 'completed'
	  AND p.churn_probability > $2
)
SELECT
	COALESCE((SELECT SUM(monetary_value) FROM at_risk WHERE monetary_value > 0), 0),
	COALESCE((SELECT COUNT(*) FROM at_risk WHERE monetary_value > 0), 0),
	COALESCE((SELECT SUM(total_customers) FROM prediction_batches
		WHERE organization_id = $1 AND status = 'completed'), 0),
	COALESCE((SELECT COUNT(*) FROM prediction_batches
		WHERE organization_id = $1 AND status = 'completed'), 0)
`

// MetricsSummary aggregates revenue at risk across all completed batches.
func (r *PGRepository) MetricsSummary(ctx context.Context, orgID uuid.UUID) (MetricsRow, error) {
	var row MetricsRow
	err := r.pool.QueryRow(ctx, metricsSummaryQuery, orgID, HighRiskThreshold).Scan(
		&row.TotalAtRiskValue,
		&row.HighRiskCount,
		&row.TotalCustomers,
		&row.TotalBatches,
	)
	if err != nil {
		return MetricsRow{}, err
	}
	return row, nil
}

const batchSavingsQuery = `
SELECT
	b.id,
	COALESCE(NULLIF(b.batch_name, ''), 'Batch ' || to_char(b.created_at, 'YYYY-MM-DD')),
	COALESCE(SUM(mv.monetary_value) FILTER (WHERE mv.monetary_value > 0), 0),
	COALESCE(COUNT(mv.monetary_value) FILTER (WHERE mv.monetary_value > 0), 0),
	b.total_customers,
	b.created_at
FROM prediction_batches b
LEFT JOIN LATERAL (
	SELECT ` + monetaryValueExpr + ` AS monetary_value
	FROM customer_predictions p
	WHERE p.batch_id = b.id AND p.churn_probability > $2
) mv ON true
WHERE b.organization_id = $1 AND b.status = 'completed'
GROUP BY b.id, b.batch_name, b.total_customers, b.created_at
ORDER BY b.created_at DESC
LIMIT $3
`

// BatchSavings aggregates savings per completed batch, newest first.
func (r *PGRepository) BatchSavings(ctx context.Context, orgID uuid.UUID, limit int) ([]BatchSavingRow, error) {
	rows, err := r.pool.Query(ctx, batchSavingsQuery, orgID, HighRiskThreshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var savings []BatchSavingRow
	for rows.Next() {
		var row BatchSavingRow
		if err := rows.Scan(
			&row.BatchID,
			&row.BatchName,
			&row.PotentialSavings,
			&row.HighRiskCount,
			&row.TotalCustomers,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		savings = append(savings, row)
	}
	return savings, rows.Err()
}

const riskDistributionQuery = `
SELECT
	p.risk_segment,
	COALESCE(SUM(mv) FILTER (WHERE mv > 0), 0),
	COALESCE(COUNT(*) FILTER (WHERE mv > 0), 0)
FROM (
	SELECT p.risk_segment, ` + monetaryValueExpr + ` AS mv
	FROM customer_predictions p
	JOIN prediction_batches b ON b.id = p.batch_id
	WHERE b.organization_id = $1
	  AND b.status = 'completed'
	  AND p.risk_segment IN ('Low', 'Medium', 'High', 'Critical')
) p
GROUP BY p.risk_segment
`

// RiskDistribution aggregates value at risk per churn-risk band.
func (r *PGRepository) RiskDistribution(ctx context.Context, orgID uuid.UUID) ([]SegmentRow, error) {
	rows, err := r.pool.Query(ctx, riskDistributionQuery, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []SegmentRow
	for rows.Next() {
		var row SegmentRow
		if err := rows.Scan(&row.Segment, &row.Value, &row.Count); err != nil {
			return nil, err
		}
		segments = append(segments, row)
	}
	return segments, rows.Err()
}
