package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoSubscription marks a user without any subscription record.
var ErrNoSubscription = errors.New("billing: no subscription")

// PGRepository provides PostgreSQL backed billing persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const activateSubscriptionQuery = `
UPDATE users SET
	subscription_plan = $2,
	billing_cycle = $3,
	subscription_status = 'active',
	subscription_start_date = $4,
	subscription_end_date = $5,
	updated_at = NOW()
WHERE id = $1
`

// ActivateSubscription attaches a paid plan to the user account.
func (r *PGRepository) ActivateSubscription(ctx context.Context, userID string, plan PlanID, cycle BillingCycle, startsAt, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, activateSubscriptionQuery, userID, plan, cycle, startsAt, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSubscription
	}
	return nil
}

const insertPaymentQuery = `
INSERT INTO payments (
	id, user_id, plan_id, billing_cycle, amount, currency,
	transaction_id, validation_id, status, paid_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// RecordPayment stores one settled transaction. The unique constraint on
// transaction_id makes replayed callbacks and IPN posts harmless.
func (r *PGRepository) RecordPayment(ctx context.Context, payment Payment) error {
	_, err := r.pool.Exec(ctx, insertPaymentQuery,
		payment.ID,
		payment.UserID,
		payment.PlanID,
		payment.Cycle,
		payment.Amount,
		payment.Currency,
		payment.TransactionID,
		payment.ValidationID,
		payment.Status,
		payment.PaidAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

const subscriptionQuery = `
SELECT
	COALESCE(subscription_plan, ''),
	COALESCE(billing_cycle, ''),
	COALESCE(subscription_status, 'none'),
	COALESCE(subscription_end_date, 'epoch'::timestamptz)
FROM users
WHERE id = $1
`

// Subscription returns the user's current plan record.
func (r *PGRepository) Subscription(ctx context.Context, userID string) (Subscription, error) {
	var sub Subscription
	err := r.pool.QueryRow(ctx, subscriptionQuery, userID).Scan(
		&sub.PlanID,
		&sub.Cycle,
		&sub.Status,
		&sub.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNoSubscription
		}
		return Subscription{}, err
	}
	if sub.PlanID == "" {
		return Subscription{}, ErrNoSubscription
	}
	if plan, err := PlanByID(sub.PlanID); err == nil {
		sub.PlanName = plan.Name
	}
	return sub, nil
}

const expireLapsedQuery = `
UPDATE users SET
	subscription_status = 'expired',
	updated_at = NOW()
WHERE subscription_status = 'active'
  AND subscription_end_date < $1
`

// ExpireLapsed downgrades subscriptions whose paid period has ended.
func (r *PGRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, expireLapsedQuery, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
