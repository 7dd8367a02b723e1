package billing

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/pulse-retention/pulse-dashboard/internal/shared"
)

// PlanID identifies a subscription tier.
type PlanID string

// BillingCycle identifies how often a plan renews.
type BillingCycle string

const (
	PlanStarter      PlanID = "starter"
	PlanProfessional PlanID = "professional"
	PlanEnterprise   PlanID = "enterprise"

	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

var (
	ErrUnknownPlan  = errors.New("billing: unknown plan")
	ErrUnknownCycle = errors.New("billing: unknown billing cycle")
)

// Plan describes one purchasable subscription tier. Prices are in BDT;
// the yearly price is twelve months with a 20% discount.
type Plan struct {
	ID           PlanID
	Name         string
	MonthlyPrice float64
	YearlyPrice  float64
	Features     []string
}

var plans = []Plan{
	{
		ID:           PlanStarter,
		Name:         "Starter",
		MonthlyPrice: 20000,
		YearlyPrice:  192000,
		Features: []string{
			"Up to 5,000 customers per batch",
			"10 prediction batches per month",
			"ROI dashboard",
		},
	},
	{
		ID:           PlanProfessional,
		Name:         "Professional",
		MonthlyPrice: 35000,
		YearlyPrice:  336000,
		Features: []string{
			"Up to 50,000 customers per batch",
			"Unlimited prediction batches",
			"ROI dashboard and CSV export",
			"Priority support",
		},
	},
	{
		ID:           PlanEnterprise,
		Name:         "Enterprise",
		MonthlyPrice: 50000,
		YearlyPrice:  480000,
		Features: []string{
			"Unlimited customers per batch",
			"Unlimited prediction batches",
			"Dedicated onboarding",
			"Custom risk thresholds",
		},
	},
}

// Plans returns all purchasable tiers in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up one tier.
func PlanByID(id PlanID) (Plan, error) {
	for _, plan := range plans {
		if plan.ID == id {
			return plan, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}

// ParsePlanID validates raw form input.
func ParsePlanID(raw string) (PlanID, error) {
	id := PlanID(raw)
	if _, err := PlanByID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ParseBillingCycle validates raw form input.
func ParseBillingCycle(raw string) (BillingCycle, error) {
	switch BillingCycle(raw) {
	case CycleMonthly:
		return CycleMonthly, nil
	case CycleYearly:
		return CycleYearly, nil
	}
	return "", ErrUnknownCycle
}

// PriceFor resolves the charge amount for a plan and cycle.
func PriceFor(id PlanID, cycle BillingCycle) (float64, error) {
	plan, err := PlanByID(id)
	if err != nil {
		return 0, err
	}
	switch cycle {
	case CycleMonthly:
		return plan.MonthlyPrice, nil
	case CycleYearly:
		return plan.YearlyPrice, nil
	}
	return 0, ErrUnknownCycle
}

// PeriodDays returns how long one paid period lasts.
func (c BillingCycle) PeriodDays() int {
	if c == CycleYearly {
		return 365
	}
	return 30
}

// PendingSubscription is the checkout record held in the session between
// initiation and gateway callback. It is consumed at most once.
type PendingSubscription struct {
	PlanID        PlanID       `json:"plan_id"`
	Cycle         BillingCycle `json:"billing_cycle"`
	Amount        float64      `json:"amount"`
	TransactionID string       `json:"transaction_id"`
	CreatedAt     time.Time    `json:"created_at"`
}

// StorePending persists the pending record in the session.
func StorePending(sess *shared.Session, pending PendingSubscription) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	sess.Set(shared.SessionKeyPendingSubscription, string(raw))
	return nil
}

// ConsumePending removes and returns the pending record. A second call
// returns nil; verification runs at most once per checkout.
func ConsumePending(sess *shared.Session) *PendingSubscription {
	if sess == nil {
		return nil
	}
	raw := sess.Get(shared.SessionKeyPendingSubscription)
	if raw == "" {
		return nil
	}
	sess.Delete(shared.SessionKeyPendingSubscription)
	var pending PendingSubscription
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil
	}
	return &pending
}

// Subscription is the active plan attached to a user account.
type Subscription struct {
	PlanID    PlanID       `json:"plan_id"`
	PlanName  string       `json:"plan_name"`
	Cycle     BillingCycle `json:"billing_cycle"`
	Status    string       `json:"status"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Active reports whether the subscription is usable right now.
func (s Subscription) Active(now time.Time) bool {
	return s.Status == "active" && now.Before(s.ExpiresAt)
}

// Payment is one settled gateway transaction.
type Payment struct {
	ID            string
	UserID        string
	PlanID        PlanID
	Cycle         BillingCycle
	Amount        float64
	Currency      string
	TransactionID string
	ValidationID  string
	Status        string
	PaidAt        time.Time
}
