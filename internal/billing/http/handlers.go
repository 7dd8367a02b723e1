package billinghttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pulse-retention/pulse-dashboard/internal/billing"
	"github.com/pulse-retention/pulse-dashboard/internal/platform/httpx"
	"github.com/pulse-retention/pulse-dashboard/internal/shared"
	"github.com/pulse-retention/pulse-dashboard/internal/view"
)

// Handler wires HTTP endpoints for plans, checkout and payment callbacks.
type Handler struct {
	logger      *slog.Logger
	service     *billing.Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	now         func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *billing.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		now:         time.Now,
	}
}

type planView struct {
	ID           billing.PlanID
	Name         string
	MonthlyPrice float64
	YearlyPrice  float64
	Features     []string
	Current      bool
}

type billingPageData struct {
	Plans        []planView
	Subscription *billing.Subscription
}

func (h *Handler) showBilling(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	if sess != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
	}

	var current *billing.Subscription
	if sess != nil && sess.User() != "" {
		sub, err := h.service.CurrentSubscription(r.Context(), sess.User())
		switch {
		case err == nil && sub.Status == "active":
			current = &sub
		case err != nil && !errors.Is(err, billing.ErrNoSubscription):
			h.logError("load subscription", err)
		}
	}

	views := make([]planView, 0, 3)
	for _, plan := range billing.Plans() {
		views = append(views, planView{
			ID:           plan.ID,
			Name:         plan.Name,
			MonthlyPrice: plan.MonthlyPrice,
			YearlyPrice:  plan.YearlyPrice,
			Features:     plan.Features,
			Current:      current != nil && current.PlanID == plan.ID,
		})
	}

	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Plans & Billing",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		UserID:      userID(sess),
		Data:        billingPageData{Plans: views, Subscription: current},
	}
	if err := h.templates.Render(w, "pages/billing.html", viewData); err != nil {
		h.logError("render billing", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type checkoutForm struct {
	PlanID billing.PlanID       `validate:"required,oneof=starter professional enterprise"`
	Cycle  billing.BillingCycle `validate:"required,oneof=monthly yearly"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := checkoutForm{
		PlanID: billing.PlanID(r.PostFormValue("plan_id")),
		Cycle:  billing.BillingCycle(r.PostFormValue("billing_cycle")),
	}
	if err := h.validator.Struct(form); err != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Choose a valid plan and billing cycle."})
		http.Redirect(w, r, "/billing", http.StatusSeeOther)
		return
	}

	customer := billing.Customer{
		ID:    sess.User(),
		Name:  sess.Get("user_name"),
		Email: sess.Get("user_email"),
	}
	session, pending, err := h.service.InitiateCheckout(r.Context(), customer, form.PlanID, form.Cycle)
	if err != nil {
		h.logError("initiate checkout", err)
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not start the payment. Please try again."})
		http.Redirect(w, r, "/billing", http.StatusSeeOther)
		return
	}
	if err := billing.StorePending(sess, pending); err != nil {
		h.logError("store pending", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, session.PaymentURL, http.StatusSeeOther)
}

type statusPageData struct {
	State   billing.FlowState
	Message string
	Nav     *billing.Navigation
}

// handleCallback is the verification screen the gateway returns the
// browser to. It drives the flow to exactly one terminal state and
// schedules exactly one deferred navigation.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	flow := billing.NewFlow()

	valID := callbackValue(r, "val_id")
	status := callbackValue(r, "status")

	switch {
	case valID == "":
		if status == "FAILED" || status == "CANCELLED" {
			flow.Fail(callbackValue(r, "error"))
		} else {
			flow.Fail("Missing payment reference.")
		}
	case sess == nil || sess.User() == "":
		flow.Fail("Your session has expired. Sign in and check your billing page.")
	default:
		pending := billing.ConsumePending(sess)
		if pending == nil {
			flow.Fail("No pending checkout found for this payment.")
		} else {
			result, err := h.service.VerifyPayment(r.Context(), sess.User(), valID, *pending)
			if err != nil {
				h.logError("verify payment", err)
				flow.Fail("")
			} else if result.Activated {
				flow.Succeed(result.Message)
			} else {
				flow.Fail(result.Message)
			}
		}
	}

	h.renderStatus(w, r, sess, flow)
}

func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, sess *shared.Session, flow *billing.Flow) {
	viewData := view.TemplateData{
		Title:       "Payment",
		CurrentPath: r.URL.Path,
		UserID:      userID(sess),
		Data: statusPageData{
			State:   flow.State(),
			Message: flow.Message(),
			Nav:     flow.Navigation(),
		},
	}
	if err := h.templates.Render(w, "pages/payment_status.html", viewData); err != nil {
		h.logError("render payment status", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// handleIPN receives the gateway's server-to-server notification.
// It always answers 200 so the gateway stops retrying; failures are logged.
func (h *Handler) handleIPN(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}
	if err := h.service.ProcessIPN(r.Context(), params); err != nil {
		h.logError("process ipn", err)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *Handler) handleAPISubscription(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sub, err := h.service.CurrentSubscription(r.Context(), sess.User())
	if err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			httpx.JSON(w, http.StatusOK, map[string]any{"plan_id": nil, "status": "none", "is_active": false})
			return
		}
		h.logError("load subscription", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "failed to load subscription")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"plan_id":       sub.PlanID,
		"plan_name":     sub.PlanName,
		"billing_cycle": sub.Cycle,
		"status":        sub.Status,
		"expires_at":    sub.ExpiresAt,
		"is_active":     sub.Active(h.now()),
	})
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

// callbackValue reads a field from either the query string or the posted
// form; the gateway uses POST for success and fail redirects but browsers
// may retry as GET.
func callbackValue(r *http.Request, key string) string {
	if value := strings.TrimSpace(r.PostFormValue(key)); value != "" {
		return value
	}
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func userID(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	return sess.User()
}

// HandleCallbackForTest exposes the callback handler for tests.
func (h *Handler) HandleCallbackForTest(w http.ResponseWriter, r *http.Request) {
	h.handleCallback(w, r)
}

// ShowBillingForTest exposes the billing page handler for tests.
func (h *Handler) ShowBillingForTest(w http.ResponseWriter, r *http.Request) {
	h.showBilling(w, r)
}
