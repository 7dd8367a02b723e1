package billinghttp

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers billing endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/billing", h.showBilling)
	r.Post("/billing/checkout", h.handleCheckout)
	r.Get("/billing/payment/callback", h.handleCallback)
	r.Post("/billing/payment/callback", h.handleCallback)
	r.Post("/billing/ipn", h.handleIPN)
	r.Get("/api/subscription", h.handleAPISubscription)
}
