package roihttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pulse-retention/pulse-dashboard/internal/platform/httpx"
	"github.com/pulse-retention/pulse-dashboard/internal/roi"
	"github.com/pulse-retention/pulse-dashboard/internal/roi/export"
	"github.com/pulse-retention/pulse-dashboard/internal/roi/svg"
	"github.com/pulse-retention/pulse-dashboard/internal/roi/ui"
	"github.com/pulse-retention/pulse-dashboard/internal/shared"
	"github.com/pulse-retention/pulse-dashboard/internal/view"
)

const requestTimeout = 2 * time.Second

var errNoOrganization = errors.New("roi: no organization in session")

// ROIService defines the dashboard data contract used by the handler.
type ROIService interface {
	GetMetrics(ctx context.Context, orgID uuid.UUID) (roi.Metrics, error)
	GetBatchSavings(ctx context.Context, orgID uuid.UUID, limit int) ([]roi.BatchSaving, error)
	GetRiskValueDistribution(ctx context.Context, orgID uuid.UUID) ([]roi.RiskSegment, error)
}

// Handler coordinates HTTP requests for the ROI dashboard.
type Handler struct {
	logger    *slog.Logger
	service   ROIService
	templates *view.Engine
	pie       ui.PieRenderer
	bars      ui.HBarRenderer
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the ROI HTTP handler.
func NewHandler(logger *slog.Logger, service ROIService, templates *view.Engine, pie ui.PieRenderer, bars ui.HBarRenderer) *Handler {
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		pie:       pie,
		bars:      bars,
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	orgID, err := organizationID(sess)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadDashboardData(ctx, orgID)
	if err != nil {
		h.renderErrorPage(w, r, "load dashboard", err)
		return
	}

	vm, err := h.buildViewModel(data)
	if err != nil {
		h.renderErrorPage(w, r, "render charts", err)
		return
	}

	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}

	viewData := view.TemplateData{
		Title:       "ROI Dashboard",
		Flash:       flash,
		CurrentPath: r.URL.Path,
		UserID:      sess.User(),
		Data:        vm,
	}
	if err := h.templates.Render(w, "pages/roi.html", viewData); err != nil {
		h.logError("render template", err)
	}
}

type dashboardData struct {
	metrics  roi.Metrics
	savings  []roi.BatchSaving
	segments []roi.RiskSegment
}

// loadDashboardData resolves the three dashboard aggregates concurrently.
// Any single failure fails the whole load; the page shows one error state.
func (h *Handler) loadDashboardData(ctx context.Context, orgID uuid.UUID) (dashboardData, error) {
	var data dashboardData

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		metrics, err := h.service.GetMetrics(ctx, orgID)
		if err != nil {
			return err
		}
		data.metrics = metrics
		return nil
	})

	g.Go(func() error {
		savings, err := h.service.GetBatchSavings(ctx, orgID, roi.DefaultSavingsLimit)
		if err != nil {
			return err
		}
		data.savings = savings
		return nil
	})

	g.Go(func() error {
		segments, err := h.service.GetRiskValueDistribution(ctx, orgID)
		if err != nil {
			return err
		}
		data.segments = segments
		return nil
	})

	if err := g.Wait(); err != nil {
		return dashboardData{}, err
	}
	return data, nil
}

func (h *Handler) buildViewModel(data dashboardData) (ui.DashboardViewModel, error) {
	if h.pie == nil || h.bars == nil {
		return ui.DashboardViewModel{}, fmt.Errorf("svg renderer missing")
	}

	vm := ui.DashboardViewModel{
		Cards:    ui.ToMetricCards(data.metrics),
		Segments: ui.ToSegmentRows(data.segments),
		Empty:    data.metrics.TotalBatches == 0,
	}
	vm.Batches, vm.BatchesTruncated = ui.ToBatchRows(data.savings)

	pieSVG, err := h.pie.Pie(svg.DefaultPieSize, ui.ToPieSlices(data.segments), svg.PieOpts{
		Title:       "Value at Risk by Segment",
		Description: "Monetary value at risk per churn-risk band",
		ShowLegend:  true,
	})
	if err != nil {
		return ui.DashboardViewModel{}, err
	}
	vm.PieSVG = pieSVG

	barsSVG, err := h.bars.HBars(svg.DefaultBarWidth, ui.ToBarRows(vm.Batches), svg.HBarOpts{
		Title:       "Potential Savings per Batch",
		Description: "At-risk value recoverable per prediction batch",
	})
	if err != nil {
		return ui.DashboardViewModel{}, err
	}
	vm.BarsSVG = barsSVG

	return vm, nil
}

func (h *Handler) handleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	orgID, err := organizationID(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	metrics, err := h.service.GetMetrics(ctx, orgID)
	if err != nil {
		h.respondAPIError(w, "load metrics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleAPIBatchSavings(w http.ResponseWriter, r *http.Request) {
	orgID, err := organizationID(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	limit := roi.DefaultSavingsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid parameter", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	savings, err := h.service.GetBatchSavings(ctx, orgID, limit)
	if err != nil {
		h.respondAPIError(w, "load batch savings", err)
		return
	}
	if savings == nil {
		savings = []roi.BatchSaving{}
	}
	httpx.JSON(w, http.StatusOK, savings)
}

func (h *Handler) handleAPIDistribution(w http.ResponseWriter, r *http.Request) {
	orgID, err := organizationID(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	segments, err := h.service.GetRiskValueDistribution(ctx, orgID)
	if err != nil {
		h.respondAPIError(w, "load distribution", err)
		return
	}
	if segments == nil {
		segments = []roi.RiskSegment{}
	}
	httpx.JSON(w, http.StatusOK, segments)
}

type summaryPayload struct {
	Metrics      roi.Metrics       `json:"metrics"`
	BatchSavings []roi.BatchSaving `json:"batch_savings"`
	RiskSegments []roi.RiskSegment `json:"risk_value_distribution"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

func (h *Handler) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	orgID, err := organizationID(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadDashboardData(ctx, orgID)
	if err != nil {
		h.respondAPIError(w, "load summary", err)
		return
	}
	if data.savings == nil {
		data.savings = []roi.BatchSaving{}
	}
	if data.segments == nil {
		data.segments = []roi.RiskSegment{}
	}
	httpx.JSON(w, http.StatusOK, summaryPayload{
		Metrics:      data.metrics,
		BatchSavings: data.savings,
		RiskSegments: data.segments,
		GeneratedAt:  h.now().UTC(),
	})
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	orgID, err := organizationID(sess)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadDashboardData(ctx, orgID)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteMetricsCSV(buf, data.metrics); err != nil {
		h.handleServerError(w, "write metrics csv", err)
		return
	}
	buf.WriteString("\n")
	if err := export.WriteBatchSavingsCSV(buf, data.savings); err != nil {
		h.handleServerError(w, "write savings csv", err)
		return
	}
	buf.WriteString("\n")
	if err := export.WriteDistributionCSV(buf, data.segments); err != nil {
		h.handleServerError(w, "write distribution csv", err)
		return
	}

	filename := fmt.Sprintf("roi-dashboard-%s.csv", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

// renderErrorPage shows the single dashboard error state. Recovery is a
// page reload; no partial data is rendered.
func (h *Handler) renderErrorPage(w http.ResponseWriter, r *http.Request, context string, err error) {
	h.logError(context, err)
	w.WriteHeader(http.StatusInternalServerError)
	viewData := view.TemplateData{
		Title:       "ROI Dashboard",
		CurrentPath: r.URL.Path,
		Data: map[string]string{
			"Message": "Failed to load ROI data",
		},
	}
	if renderErr := h.templates.Render(w, "pages/error.html", viewData); renderErr != nil {
		h.logError("render error page", renderErr)
	}
}

func (h *Handler) respondAPIError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal error", "failed to load ROI data")
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

func organizationID(sess *shared.Session) (uuid.UUID, error) {
	if sess == nil || strings.TrimSpace(sess.User()) == "" {
		return uuid.UUID{}, errNoOrganization
	}
	raw := strings.TrimSpace(sess.Get(shared.SessionKeyOrganization))
	if raw == "" {
		return uuid.UUID{}, errNoOrganization
	}
	orgID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errNoOrganization
	}
	return orgID, nil
}

// HandleDashboardForTest exposes the dashboard handler for tests.
func (h *Handler) HandleDashboardForTest(w http.ResponseWriter, r *http.Request) {
	h.handleDashboard(w, r)
}

// HandleCSVForTest exposes the CSV handler for tests.
func (h *Handler) HandleCSVForTest(w http.ResponseWriter, r *http.Request) { h.handleCSV(w, r) }
