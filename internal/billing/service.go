package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// amountTolerance absorbs floating point drift between the charged and
// validated amount.
const amountTolerance = 0.01

// ErrDuplicatePayment marks a transaction that was already recorded.
var ErrDuplicatePayment = errors.New("billing: payment already recorded")

// PaymentGateway is the gateway surface the service depends on.
type PaymentGateway interface {
	CreateSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error)
	Validate(ctx context.Context, valID string) (ValidationResult, error)
	VerifyIPNSignature(params map[string]string) bool
}

// Repository persists subscriptions and payments.
type Repository interface {
	ActivateSubscription(ctx context.Context, userID string, plan PlanID, cycle BillingCycle, startsAt, expiresAt time.Time) error
	RecordPayment(ctx context.Context, payment Payment) error
	Subscription(ctx context.Context, userID string) (Subscription, error)
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// Customer identifies the paying user for checkout.
type Customer struct {
	ID    string
	Name  string
	Email string
}

// VerificationResult is the outcome of a payment verification attempt.
type VerificationResult struct {
	Activated bool
	Message   string
}

// Service coordinates checkout, verification and subscription state.
type Service struct {
	repo    Repository
	gateway PaymentGateway
	now     func() time.Time
}

// NewService wires the billing service.
func NewService(repo Repository, gateway PaymentGateway) *Service {
	return &Service{repo: repo, gateway: gateway, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// InitiateCheckout prices the plan, registers a gateway session and returns
// the hosted payment URL with the pending record to stash in the session.
func (s *Service) InitiateCheckout(ctx context.Context, customer Customer, planID PlanID, cycle BillingCycle) (CheckoutSession, PendingSubscription, error) {
	amount, err := PriceFor(planID, cycle)
	if err != nil {
		return CheckoutSession{}, PendingSubscription{}, err
	}

	now := s.now()
	transactionID := fmt.Sprintf("PULSE-%s-%d", customer.ID, now.Unix())

	session, err := s.gateway.CreateSession(ctx, CheckoutParams{
		Amount:        amount,
		TransactionID: transactionID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		PlanID:        planID,
		Cycle:         cycle,
		UserID:        customer.ID,
	})
	if err != nil {
		return CheckoutSession{}, PendingSubscription{}, err
	}

	pending := PendingSubscription{
		PlanID:        planID,
		Cycle:         cycle,
		Amount:        amount,
		TransactionID: transactionID,
		CreatedAt:     now,
	}
	return session, pending, nil
}

// VerifyPayment confirms a gateway callback against the pending checkout
// record and activates the subscription on success. The result message
// carries the gateway's own reason when it gives one.
func (s *Service) VerifyPayment(ctx context.Context, userID, valID string, pending PendingSubscription) (VerificationResult, error) {
	result, err := s.gateway.Validate(ctx, valID)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return VerificationResult{Message: gwErr.Reason}, nil
		}
		return VerificationResult{}, err
	}

	if !result.Settled() {
		return VerificationResult{Message: result.Reason}, nil
	}
	if result.TransactionID != "" && result.TransactionID != pending.TransactionID {
		return VerificationResult{Message: "Transaction mismatch"}, nil
	}
	if math.Abs(result.Amount-pending.Amount) > amountTolerance {
		return VerificationResult{Message: "Amount mismatch"}, nil
	}

	if err := s.activate(ctx, userID, pending.PlanID, pending.Cycle, Payment{
		UserID:        userID,
		PlanID:        pending.PlanID,
		Cycle:         pending.Cycle,
		Amount:        result.Amount,
		Currency:      result.Currency,
		TransactionID: pending.TransactionID,
		ValidationID:  result.ValidationID,
		Status:        result.Status,
	}); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			return VerificationResult{Activated: true, Message: "Payment already processed."}, nil
		}
		return VerificationResult{}, err
	}

	plan, _ := PlanByID(pending.PlanID)
	return VerificationResult{
		Activated: true,
		Message:   fmt.Sprintf("Payment verified. %s plan activated.", plan.Name),
	}, nil
}

// ProcessIPN handles the gateway's server-to-server notification. The
// signature proves origin; the validation API confirms settlement. The
// passthrough fields identify the user and plan independently of any
// browser session.
func (s *Service) ProcessIPN(ctx context.Context, params map[string]string) error {
	if !s.gateway.VerifyIPNSignature(params) {
		return errors.New("billing: invalid IPN signature")
	}

	valID := params["val_id"]
	if valID == "" {
		return errors.New("billing: IPN missing val_id")
	}
	result, err := s.gateway.Validate(ctx, valID)
	if err != nil {
		return err
	}
	if !result.Settled() {
		return nil
	}

	planID, err := ParsePlanID(params["value_a"])
	if err != nil {
		return err
	}
	cycle, err := ParseBillingCycle(params["value_b"])
	if err != nil {
		return err
	}
	userID := params["value_c"]
	if userID == "" {
		return errors.New("billing: IPN missing user reference")
	}

	err = s.activate(ctx, userID, planID, cycle, Payment{
		UserID:        userID,
		PlanID:        planID,
		Cycle:         cycle,
		Amount:        result.Amount,
		Currency:      result.Currency,
		TransactionID: result.TransactionID,
		ValidationID:  result.ValidationID,
		Status:        result.Status,
	})
	if errors.Is(err, ErrDuplicatePayment) {
		return nil
	}
	return err
}

// CurrentSubscription returns the user's subscription record.
func (s *Service) CurrentSubscription(ctx context.Context, userID string) (Subscription, error) {
	return s.repo.Subscription(ctx, userID)
}

// ExpireLapsed marks overdue subscriptions expired and returns the count.
func (s *Service) ExpireLapsed(ctx context.Context) (int64, error) {
	return s.repo.ExpireLapsed(ctx, s.now())
}

func (s *Service) activate(ctx context.Context, userID string, planID PlanID, cycle BillingCycle, payment Payment) error {
	now := s.now()
	payment.ID = uuid.NewString()
	payment.PaidAt = now

	if err := s.repo.RecordPayment(ctx, payment); err != nil {
		return err
	}
	expiresAt := now.AddDate(0, 0, cycle.PeriodDays())
	return s.repo.ActivateSubscription(ctx, userID, planID, cycle, now, expiresAt)
}
