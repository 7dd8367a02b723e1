package roihttp

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulse-retention/pulse-dashboard/internal/roi"
	"github.com/pulse-retention/pulse-dashboard/internal/roi/svg"
	"github.com/pulse-retention/pulse-dashboard/internal/shared"
	"github.com/pulse-retention/pulse-dashboard/internal/view"
)

type stubService struct {
	metrics   roi.Metrics
	savings   []roi.BatchSaving
	segments  []roi.RiskSegment
	savingsIn int
	err       error
}

func (s *stubService) GetMetrics(ctx context.Context, orgID uuid.UUID) (roi.Metrics, error) {
	return s.metrics, s.err
}

func (s *stubService) GetBatchSavings(ctx context.Context, orgID uuid.UUID, limit int) ([]roi.BatchSaving, error) {
	s.savingsIn = limit
	return s.savings, s.err
}

func (s *stubService) GetRiskValueDistribution(ctx context.Context, orgID uuid.UUID) ([]roi.RiskSegment, error) {
	return s.segments, s.err
}

type pieAdapter func(size int, slices []svg.Slice, opts svg.PieOpts) (template.HTML, error)

type barAdapter func(width int, rows []svg.Row, opts svg.HBarOpts) (template.HTML, error)

func (a pieAdapter) Pie(size int, slices []svg.Slice, opts svg.PieOpts) (template.HTML, error) {
	return a(size, slices, opts)
}

func (a barAdapter) HBars(width int, rows []svg.Row, opts svg.HBarOpts) (template.HTML, error) {
	return a(width, rows, opts)
}

func sampleSavings(n int) []roi.BatchSaving {
	savings := make([]roi.BatchSaving, 0, n)
	for i := 0; i < n; i++ {
		savings = append(savings, roi.BatchSaving{
			BatchID:          uuid.New(),
			BatchName:        "Batch " + string(rune('A'+i)),
			PotentialSavings: float64(100 * (i + 1)),
			HighRiskCount:    int64(i + 1),
			TotalCustomers:   50,
			CreatedAt:        time.Date(2025, 3, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	return savings
}

func newTestHandler(t *testing.T, service *stubService) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	handler := NewHandler(nil, service, templates, pieAdapter(svg.Pie), barAdapter(svg.HBars))
	handler.WithNow(func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) })
	return handler
}

func newSessionRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	sess := &shared.Session{}
	sess.SetUser("42")
	sess.Set(shared.SessionKeyOrganization, uuid.New().String())
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestDashboardRedirectsWithoutSession(t *testing.T) {
	handler := newTestHandler(t, &stubService{})
	req := httptest.NewRequest(http.MethodGet, "/roi", nil)
	rr := httptest.NewRecorder()
	handler.handleDashboard(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %s", loc)
	}
}

func TestDashboardSuccess(t *testing.T) {
	service := &stubService{
		metrics: roi.Metrics{TotalRevenue: 12000, TotalBatches: 3, TotalCustomersAnalyzed: 400, TotalHighRisk: 40, AvgBatchValue: 4000},
		savings: sampleSavings(3),
		segments: []roi.RiskSegment{
			{Name: "High", Value: 8000, Count: 25, Color: "#ef4444"},
			{Name: "Critical", Value: 4000, Count: 15, Color: "#991b1b"},
		},
	}
	handler := newTestHandler(t, service)
	req := newSessionRequest(http.MethodGet, "/roi")
	rr := httptest.NewRecorder()
	handler.handleDashboard(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "ROI Dashboard") {
		t.Fatalf("expected dashboard title in response")
	}
	if !strings.Contains(body, "<svg") {
		t.Fatalf("expected inline charts in response")
	}
	if !strings.Contains(body, "Batch A") {
		t.Fatalf("expected batch table in response")
	}
}

func TestDashboardTruncatesBatchRows(t *testing.T) {
	service := &stubService{
		metrics: roi.Metrics{TotalRevenue: 1000, TotalBatches: 12},
		savings: sampleSavings(12),
	}
	handler := newTestHandler(t, service)
	req := newSessionRequest(http.MethodGet, "/roi")
	rr := httptest.NewRecorder()
	handler.handleDashboard(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Batch H") {
		t.Fatalf("expected eighth batch row in response")
	}
	if strings.Contains(body, "Batch I") {
		t.Fatalf("expected ninth batch row to be truncated")
	}
	if !strings.Contains(body, "Export CSV for the full list") {
		t.Fatalf("expected truncation hint in response")
	}
}

func TestDashboardRendersSingleErrorState(t *testing.T) {
	service := &stubService{err: errors.New("db down")}
	handler := newTestHandler(t, service)
	req := newSessionRequest(http.MethodGet, "/roi")
	rr := httptest.NewRecorder()
	handler.handleDashboard(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Failed to load ROI data") {
		t.Fatalf("expected error state in response")
	}
}

func TestAPIMetrics(t *testing.T) {
	service := &stubService{metrics: roi.Metrics{TotalRevenue: 555.5, TotalHighRisk: 9}}
	handler := newTestHandler(t, service)
	req := newSessionRequest(http.MethodGet, "/api/roi/metrics")
	rr := httptest.NewRecorder()
	handler.handleAPIMetrics(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"totalRevenue":555.5`) {
		t.Fatalf("unexpected payload: %s", body)
	}
	if !strings.Contains(body, `"total_high_risk":9`) {
		t.Fatalf("unexpected payload: %s", body)
	}
}

func TestAPIBatchSavingsValidatesLimit(t *testing.T) {
	handler := newTestHandler(t, &stubService{})
	req := newSessionRequest(http.MethodGet, "/api/roi/batch-savings?limit=abc")
	rr := httptest.NewRecorder()
	handler.handleAPIBatchSavings(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAPIBatchSavingsPassesLimit(t *testing.T) {
	service := &stubService{savings: sampleSavings(2)}
	handler := newTestHandler(t, service)
	req := newSessionRequest(http.MethodGet, "/api/roi/batch-savings?limit=25")
	rr := httptest.NewRecorder()
	handler.handleAPIBatchSavings(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if service.savingsIn != 25 {
		t.Fatalf("expected limit 25 passed through, got %d", service.savingsIn)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	handler := newTestHandler(t, &stubService{})
	req := httptest.NewRequest(http.MethodGet, "/api/roi/metrics", nil)
	rr := httptest.NewRecorder()
	handler.handleAPIMetrics(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCSVExport(t *testing.T) {
	service := &stubService{
		metrics:  roi.Metrics{TotalRevenue: 9999, TotalBatches: 1},
		savings:  sampleSavings(1),
		segments: []roi.RiskSegment{{Name: "High", Value: 9999, Count: 4, Color: "#ef4444"}},
	}
	handler := newTestHandler(t, service)
	req := newSessionRequest(http.MethodGet, "/roi/export.csv")
	rr := httptest.NewRecorder()
	handler.handleCSV(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Metric,Value") {
		t.Fatalf("expected metrics section in CSV")
	}
	if !strings.Contains(body, "Segment,Value,Customers") {
		t.Fatalf("expected distribution section in CSV")
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "roi-dashboard-2025-04-01.csv") {
		t.Fatalf("unexpected disposition %s", cd)
	}
}
