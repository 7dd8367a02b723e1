package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskROIWarmup pre-populates ROI dashboard caches per organization.
	TaskROIWarmup = "roi:warmup"
	// TaskSubscriptionExpiry marks lapsed subscriptions as expired.
	TaskSubscriptionExpiry = "billing:expiry"
)

// ROIWarmupPayload scopes a warmup run. An empty OrganizationID warms
// every organization with completed prediction batches.
type ROIWarmupPayload struct {
	OrganizationID string `json:"organization_id,omitempty"`
}

// NewROIWarmupTask constructs an Asynq task for dashboard cache warmup.
func NewROIWarmupTask(payload ROIWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskROIWarmup, data), nil
}

// SubscriptionExpiryPayload carries no parameters today but keeps the
// wire format extensible.
type SubscriptionExpiryPayload struct{}

// NewSubscriptionExpiryTask constructs an Asynq task for expiry sweeps.
func NewSubscriptionExpiryTask() (*asynq.Task, error) {
	data, err := json.Marshal(SubscriptionExpiryPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubscriptionExpiry, data), nil
}
