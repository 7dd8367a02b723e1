package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulse-retention/pulse-dashboard/internal/shared"
)

func sessionFixture(t *testing.T) *shared.Session {
	t.Helper()
	return &shared.Session{}
}

type fakeGateway struct {
	session     CheckoutSession
	sessionErr  error
	validation  ValidationResult
	validateErr error
	signatureOK bool
	lastParams  CheckoutParams
}

func (g *fakeGateway) CreateSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error) {
	g.lastParams = params
	return g.session, g.sessionErr
}

func (g *fakeGateway) Validate(ctx context.Context, valID string) (ValidationResult, error) {
	return g.validation, g.validateErr
}

func (g *fakeGateway) VerifyIPNSignature(params map[string]string) bool {
	return g.signatureOK
}

type fakeRepo struct {
	payments      []Payment
	activations   int
	paymentErr    error
	subscription  Subscription
	subscriptionE error
	expired       int64
}

func (r *fakeRepo) ActivateSubscription(ctx context.Context, userID string, plan PlanID, cycle BillingCycle, startsAt, expiresAt time.Time) error {
	r.activations++
	return nil
}

func (r *fakeRepo) RecordPayment(ctx context.Context, payment Payment) error {
	if r.paymentErr != nil {
		return r.paymentErr
	}
	r.payments = append(r.payments, payment)
	return nil
}

func (r *fakeRepo) Subscription(ctx context.Context, userID string) (Subscription, error) {
	return r.subscription, r.subscriptionE
}

func (r *fakeRepo) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	return r.expired, nil
}

func newBillingService(repo *fakeRepo, gw *fakeGateway) *Service {
	svc := NewService(repo, gw)
	svc.WithNow(func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) })
	return svc
}

func TestInitiateCheckoutBuildsPendingRecord(t *testing.T) {
	gw := &fakeGateway{session: CheckoutSession{PaymentURL: "https://pay.example/x", SessionKey: "s1"}}
	repo := &fakeRepo{}
	svc := newBillingService(repo, gw)

	customer := Customer{ID: "42", Name: "Test User", Email: "test@example.com"}
	session, pending, err := svc.InitiateCheckout(context.Background(), customer, PlanProfessional, CycleYearly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.PaymentURL != "https://pay.example/x" {
		t.Fatalf("unexpected payment url %s", session.PaymentURL)
	}
	if pending.Amount != 336000 {
		t.Fatalf("expected yearly professional price, got %.2f", pending.Amount)
	}
	wantTxn := "PULSE-42-1746100800"
	if pending.TransactionID != wantTxn {
		t.Fatalf("expected transaction id %s, got %s", wantTxn, pending.TransactionID)
	}
	if gw.lastParams.PlanID != PlanProfessional || gw.lastParams.Cycle != CycleYearly {
		t.Fatalf("expected plan passthrough, got %+v", gw.lastParams)
	}
}

func TestInitiateCheckoutRejectsUnknownPlan(t *testing.T) {
	svc := newBillingService(&fakeRepo{}, &fakeGateway{})
	_, _, err := svc.InitiateCheckout(context.Background(), Customer{ID: "1"}, PlanID("free"), CycleMonthly)
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func pendingFixture() PendingSubscription {
	return PendingSubscription{
		PlanID:        PlanStarter,
		Cycle:         CycleMonthly,
		Amount:        20000,
		TransactionID: "PULSE-42-1746100800",
		CreatedAt:     time.Date(2025, 5, 1, 11, 58, 0, 0, time.UTC),
	}
}

func TestVerifyPaymentActivatesSubscription(t *testing.T) {
	gw := &fakeGateway{validation: ValidationResult{
		Status:        "VALID",
		TransactionID: "PULSE-42-1746100800",
		ValidationID:  "val-1",
		Amount:        20000,
		Currency:      "BDT",
	}}
	repo := &fakeRepo{}
	svc := newBillingService(repo, gw)

	result, err := svc.VerifyPayment(context.Background(), "42", "val-1", pendingFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Activated {
		t.Fatalf("expected activation, got %+v", result)
	}
	if repo.activations != 1 {
		t.Fatalf("expected 1 activation, got %d", repo.activations)
	}
	if len(repo.payments) != 1 || repo.payments[0].TransactionID != "PULSE-42-1746100800" {
		t.Fatalf("expected recorded payment, got %+v", repo.payments)
	}
}

func TestVerifyPaymentToleratesSmallAmountDrift(t *testing.T) {
	gw := &fakeGateway{validation: ValidationResult{
		Status:        "VALIDATED",
		TransactionID: "PULSE-42-1746100800",
		Amount:        20000.009,
	}}
	svc := newBillingService(&fakeRepo{}, gw)

	result, err := svc.VerifyPayment(context.Background(), "42", "v", pendingFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Activated {
		t.Fatalf("expected drift within tolerance to pass, got %+v", result)
	}
}

func TestVerifyPaymentRejectsAmountMismatch(t *testing.T) {
	gw := &fakeGateway{validation: ValidationResult{
		Status:        "VALID",
		TransactionID: "PULSE-42-1746100800",
		Amount:        19000,
	}}
	repo := &fakeRepo{}
	svc := newBillingService(repo, gw)

	result, err := svc.VerifyPayment(context.Background(), "42", "v", pendingFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Activated {
		t.Fatalf("expected rejection on amount mismatch")
	}
	if result.Message != "Amount mismatch" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if repo.activations != 0 {
		t.Fatalf("expected no activation")
	}
}

func TestVerifyPaymentCarriesGatewayReason(t *testing.T) {
	gw := &fakeGateway{validation: ValidationResult{Status: "FAILED", Reason: "Insufficient funds"}}
	svc := newBillingService(&fakeRepo{}, gw)

	result, err := svc.VerifyPayment(context.Background(), "42", "v", pendingFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Activated {
		t.Fatalf("expected failure")
	}
	if result.Message != "Insufficient funds" {
		t.Fatalf("expected gateway reason, got %q", result.Message)
	}
}

func TestVerifyPaymentDuplicateIsIdempotent(t *testing.T) {
	gw := &fakeGateway{validation: ValidationResult{
		Status:        "VALID",
		TransactionID: "PULSE-42-1746100800",
		Amount:        20000,
	}}
	repo := &fakeRepo{paymentErr: ErrDuplicatePayment}
	svc := newBillingService(repo, gw)

	result, err := svc.VerifyPayment(context.Background(), "42", "v", pendingFixture())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Activated {
		t.Fatalf("expected duplicate to count as processed, got %+v", result)
	}
}

func TestProcessIPNRejectsBadSignature(t *testing.T) {
	svc := newBillingService(&fakeRepo{}, &fakeGateway{signatureOK: false})
	err := svc.ProcessIPN(context.Background(), map[string]string{"val_id": "v"})
	if err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestProcessIPNActivatesFromPassthrough(t *testing.T) {
	gw := &fakeGateway{
		signatureOK: true,
		validation: ValidationResult{
			Status:        "VALID",
			TransactionID: "PULSE-7-1",
			Amount:        20000,
		},
	}
	repo := &fakeRepo{}
	svc := newBillingService(repo, gw)

	err := svc.ProcessIPN(context.Background(), map[string]string{
		"val_id":  "val-9",
		"value_a": "starter",
		"value_b": "monthly",
		"value_c": "7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.activations != 1 {
		t.Fatalf("expected activation from IPN, got %d", repo.activations)
	}
}

func TestConsumePendingIsSingleUse(t *testing.T) {
	sess := sessionFixture(t)
	if err := StorePending(sess, pendingFixture()); err != nil {
		t.Fatalf("store pending: %v", err)
	}
	first := ConsumePending(sess)
	if first == nil || first.TransactionID != "PULSE-42-1746100800" {
		t.Fatalf("expected pending record on first consume, got %+v", first)
	}
	if second := ConsumePending(sess); second != nil {
		t.Fatalf("expected second consume to return nil, got %+v", second)
	}
}
