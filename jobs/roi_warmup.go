package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/pulse-retention/pulse-dashboard/internal/jobs"
	"github.com/pulse-retention/pulse-dashboard/internal/roi"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ROIWarmupJob pre-populates ROI dashboard caches for organizations with
// completed prediction batches, so the first dashboard hit after an
// invalidation does not pay the aggregate query cost.
type ROIWarmupJob struct {
	ROI     *roi.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewROIWarmupJob wires dependencies for the warmup handler.
func NewROIWarmupJob(roiSvc *roi.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ROIWarmupJob {
	return &ROIWarmupJob{
		ROI:     roiSvc,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes ROI warmup tasks.
func (j *ROIWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("roi warmup: handler not configured")
	}
	var payload ROIWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskROIWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()

	orgs, err := j.resolveOrganizations(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("load warmup organizations", slog.Any("error", err))
		return resultErr
	}
	if len(orgs) == 0 {
		logger.Info("no organizations discovered for warmup")
		return resultErr
	}

	warmed := 0
	for _, orgID := range orgs {
		if err := j.warmOrganization(ctx, orgID); err != nil {
			resultErr = err
			logger.Error("warm organization", slog.String("organization_id", orgID.String()), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed roi warmup", slog.Int("organizations", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ROIWarmupJob) warmOrganization(ctx context.Context, orgID uuid.UUID) error {
	if j.ROI == nil {
		return nil
	}
	// Tighten each organization's run with a timeout to avoid long-running jobs.
	orgCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := j.ROI.GetMetrics(orgCtx, orgID); err != nil {
		return err
	}
	if _, err := j.ROI.GetBatchSavings(orgCtx, orgID, roi.DefaultSavingsLimit); err != nil {
		return err
	}
	if _, err := j.ROI.GetRiskValueDistribution(orgCtx, orgID); err != nil {
		return err
	}
	return nil
}

func (j *ROIWarmupJob) resolveOrganizations(ctx context.Context, payload ROIWarmupPayload) ([]uuid.UUID, error) {
	if payload.OrganizationID != "" {
		orgID, err := uuid.Parse(payload.OrganizationID)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{orgID}, nil
	}
	if j.Pool == nil {
		return nil, errors.New("roi warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT organization_id FROM prediction_batches WHERE status = 'completed' ORDER BY organization_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := make([]uuid.UUID, 0)
	for rows.Next() {
		var orgID uuid.UUID
		if err := rows.Scan(&orgID); err != nil {
			return nil, err
		}
		orgs = append(orgs, orgID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (j *ROIWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskROIWarmup))
	}
	return slog.Default().With(slog.String("job", TaskROIWarmup))
}

func (j *ROIWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ROIWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
