package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pulse-retention/pulse-dashboard/internal/auth"
	billinghttp "github.com/pulse-retention/pulse-dashboard/internal/billing/http"
	"github.com/pulse-retention/pulse-dashboard/internal/observability"
	roihttp "github.com/pulse-retention/pulse-dashboard/internal/roi/http"
	"github.com/pulse-retention/pulse-dashboard/internal/shared"
	"github.com/pulse-retention/pulse-dashboard/internal/view"
	"github.com/pulse-retention/pulse-dashboard/jobs"
	"github.com/pulse-retention/pulse-dashboard/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	BillingHandler *billinghttp.Handler
	ROIHandler     *roihttp.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Pulse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		flash := sess.PopFlash()
		data := view.TemplateData{
			Title:       "Pulse",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
			UserID:      sess.User(),
			Data: map[string]any{
				"PaymentSuccess": r.URL.Query().Get("payment") == "success",
			},
		}
		if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
			params.Logger.Error("render home", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	params.AuthHandler.MountRoutes(r)
	if params.BillingHandler != nil {
		params.BillingHandler.MountRoutes(r)
	}
	if params.ROIHandler != nil {
		params.ROIHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
