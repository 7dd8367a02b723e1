package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pulse-retention/pulse-dashboard/internal/billing"
	jobmetrics "github.com/pulse-retention/pulse-dashboard/internal/jobs"
)

// SubscriptionExpiryJob marks subscriptions past their end date as expired.
type SubscriptionExpiryJob struct {
	Billing *billing.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSubscriptionExpiryJob wires dependencies for the expiry sweep.
func NewSubscriptionExpiryJob(billingSvc *billing.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SubscriptionExpiryJob {
	return &SubscriptionExpiryJob{Billing: billingSvc, Logger: logger, Metrics: metrics}
}

// Handle processes subscription expiry tasks.
func (j *SubscriptionExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Billing == nil {
		return errors.New("subscription expiry: handler not configured")
	}

	tracker := j.metrics().Track(TaskSubscriptionExpiry)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	expired, err := j.Billing.ExpireLapsed(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("expire lapsed subscriptions", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddExpiredSubscriptions(expired)
	if expired > 0 {
		j.logger().Info("expired lapsed subscriptions", slog.Int64("count", expired))
	}
	return resultErr
}

func (j *SubscriptionExpiryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSubscriptionExpiry))
	}
	return slog.Default().With(slog.String("job", TaskSubscriptionExpiry))
}

func (j *SubscriptionExpiryJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
