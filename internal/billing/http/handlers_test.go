package billinghttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pulse-retention/pulse-dashboard/internal/billing"
	"github.com/pulse-retention/pulse-dashboard/internal/shared"
	"github.com/pulse-retention/pulse-dashboard/internal/view"
)

type stubGateway struct {
	validation  billing.ValidationResult
	validateErr error
	signatureOK bool
}

func (g *stubGateway) CreateSession(ctx context.Context, params billing.CheckoutParams) (billing.CheckoutSession, error) {
	return billing.CheckoutSession{PaymentURL: "https://pay.example/x", SessionKey: "s"}, nil
}

func (g *stubGateway) Validate(ctx context.Context, valID string) (billing.ValidationResult, error) {
	return g.validation, g.validateErr
}

func (g *stubGateway) VerifyIPNSignature(params map[string]string) bool {
	return g.signatureOK
}

type stubRepo struct {
	activations  int
	subscription billing.Subscription
	subErr       error
}

func (r *stubRepo) ActivateSubscription(ctx context.Context, userID string, plan billing.PlanID, cycle billing.BillingCycle, startsAt, expiresAt time.Time) error {
	r.activations++
	return nil
}

func (r *stubRepo) RecordPayment(ctx context.Context, payment billing.Payment) error {
	return nil
}

func (r *stubRepo) Subscription(ctx context.Context, userID string) (billing.Subscription, error) {
	return r.subscription, r.subErr
}

func (r *stubRepo) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestHandler(t *testing.T, repo *stubRepo, gw *stubGateway) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	service := billing.NewService(repo, gw)
	return NewHandler(nil, service, templates, shared.NewCSRFManager("test-secret"))
}

func newSession(userID string) *shared.Session {
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	return sess
}

func storePending(t *testing.T, sess *shared.Session) billing.PendingSubscription {
	t.Helper()
	pending := billing.PendingSubscription{
		PlanID:        billing.PlanStarter,
		Cycle:         billing.CycleMonthly,
		Amount:        20000,
		TransactionID: "PULSE-42-100",
		CreatedAt:     time.Now(),
	}
	if err := billing.StorePending(sess, pending); err != nil {
		t.Fatalf("store pending: %v", err)
	}
	return pending
}

func callbackRequest(sess *shared.Session, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/billing/payment/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	return req
}

func TestShowBillingListsPlans(t *testing.T) {
	handler := newTestHandler(t, &stubRepo{subErr: billing.ErrNoSubscription}, &stubGateway{})
	req := httptest.NewRequest(http.MethodGet, "/billing", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), newSession("")))
	rr := httptest.NewRecorder()
	handler.showBilling(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"Starter", "Professional", "Enterprise"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected plan %s in response", name)
		}
	}
}

func TestShowBillingMarksCurrentPlan(t *testing.T) {
	repo := &stubRepo{subscription: billing.Subscription{
		PlanID:    billing.PlanStarter,
		PlanName:  "Starter",
		Cycle:     billing.CycleMonthly,
		Status:    "active",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}}
	handler := newTestHandler(t, repo, &stubGateway{})
	req := httptest.NewRequest(http.MethodGet, "/billing", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), newSession("42")))
	rr := httptest.NewRecorder()
	handler.showBilling(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Your plan") {
		t.Fatalf("expected current plan badge in response")
	}
}

func TestCheckoutRedirectsToGateway(t *testing.T) {
	handler := newTestHandler(t, &stubRepo{}, &stubGateway{})
	form := url.Values{"plan_id": {"starter"}, "billing_cycle": {"monthly"}}
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess := newSession("42")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	handler.handleCheckout(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://pay.example/x" {
		t.Fatalf("expected gateway redirect, got %s", loc)
	}
	if pending := billing.ConsumePending(sess); pending == nil {
		t.Fatalf("expected pending record stored in session")
	}
}

func TestCheckoutRejectsInvalidPlan(t *testing.T) {
	handler := newTestHandler(t, &stubRepo{}, &stubGateway{})
	form := url.Values{"plan_id": {"free"}, "billing_cycle": {"monthly"}}
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(shared.ContextWithSession(req.Context(), newSession("42")))
	rr := httptest.NewRecorder()
	handler.handleCheckout(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/billing" {
		t.Fatalf("expected redirect back to billing, got %s", loc)
	}
}

func TestCallbackSuccessSchedulesHomeRedirect(t *testing.T) {
	gw := &stubGateway{validation: billing.ValidationResult{
		Status:        "VALID",
		TransactionID: "PULSE-42-100",
		Amount:        20000,
	}}
	repo := &stubRepo{}
	handler := newTestHandler(t, repo, gw)

	sess := newSession("42")
	storePending(t, sess)
	req := callbackRequest(sess, url.Values{"val_id": {"val-1"}, "status": {"VALID"}})
	rr := httptest.NewRecorder()
	handler.handleCallback(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Payment successful") {
		t.Fatalf("expected success state in response")
	}
	if !strings.Contains(body, "payment=success") {
		t.Fatalf("expected success flag on deferred redirect")
	}
	if !strings.Contains(body, "2000") {
		t.Fatalf("expected 2s redirect delay in response")
	}
	if repo.activations != 1 {
		t.Fatalf("expected subscription activation")
	}
}

func TestCallbackFailureSchedulesBillingRedirect(t *testing.T) {
	gw := &stubGateway{validation: billing.ValidationResult{Status: "FAILED", Reason: "Card declined"}}
	handler := newTestHandler(t, &stubRepo{}, gw)

	sess := newSession("42")
	storePending(t, sess)
	req := callbackRequest(sess, url.Values{"val_id": {"val-1"}})
	rr := httptest.NewRecorder()
	handler.handleCallback(rr, req)
	body := rr.Body.String()
	if !strings.Contains(body, "Payment failed") {
		t.Fatalf("expected failed state in response")
	}
	if !strings.Contains(body, "Card declined") {
		t.Fatalf("expected gateway reason in response")
	}
	if !strings.Contains(body, "/billing") {
		t.Fatalf("expected billing redirect target")
	}
	if !strings.Contains(body, "3000") {
		t.Fatalf("expected 3s redirect delay in response")
	}
}

func TestCallbackWithoutPaymentReferenceFails(t *testing.T) {
	handler := newTestHandler(t, &stubRepo{}, &stubGateway{})
	sess := newSession("42")
	storePending(t, sess)
	req := callbackRequest(sess, url.Values{})
	rr := httptest.NewRecorder()
	handler.handleCallback(rr, req)
	if !strings.Contains(rr.Body.String(), "Missing payment reference") {
		t.Fatalf("expected missing reference failure")
	}
}

func TestCallbackWithoutPendingRecordFails(t *testing.T) {
	gw := &stubGateway{validation: billing.ValidationResult{Status: "VALID", Amount: 20000}}
	repo := &stubRepo{}
	handler := newTestHandler(t, repo, gw)

	sess := newSession("42")
	req := callbackRequest(sess, url.Values{"val_id": {"val-1"}})
	rr := httptest.NewRecorder()
	handler.handleCallback(rr, req)
	if !strings.Contains(rr.Body.String(), "No pending checkout") {
		t.Fatalf("expected missing pending failure")
	}
	if repo.activations != 0 {
		t.Fatalf("expected no activation without pending record")
	}
}

func TestCallbackVerifiesAtMostOnce(t *testing.T) {
	gw := &stubGateway{validation: billing.ValidationResult{
		Status:        "VALID",
		TransactionID: "PULSE-42-100",
		Amount:        20000,
	}}
	repo := &stubRepo{}
	handler := newTestHandler(t, repo, gw)

	sess := newSession("42")
	storePending(t, sess)

	first := httptest.NewRecorder()
	handler.handleCallback(first, callbackRequest(sess, url.Values{"val_id": {"val-1"}}))
	second := httptest.NewRecorder()
	handler.handleCallback(second, callbackRequest(sess, url.Values{"val_id": {"val-1"}}))

	if repo.activations != 1 {
		t.Fatalf("expected exactly one activation, got %d", repo.activations)
	}
	if !strings.Contains(second.Body.String(), "No pending checkout") {
		t.Fatalf("expected replayed callback to fail")
	}
}

func TestIPNAlwaysAcknowledges(t *testing.T) {
	handler := newTestHandler(t, &stubRepo{}, &stubGateway{signatureOK: false})
	form := url.Values{"val_id": {"v"}, "verify_sign": {"bad"}}
	req := httptest.NewRequest(http.MethodPost, "/billing/ipn", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.handleIPN(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "received") {
		t.Fatalf("expected acknowledgement body")
	}
}

func TestAPISubscriptionWithoutRecord(t *testing.T) {
	handler := newTestHandler(t, &stubRepo{subErr: billing.ErrNoSubscription}, &stubGateway{})
	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), newSession("42")))
	rr := httptest.NewRecorder()
	handler.handleAPISubscription(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"none"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
