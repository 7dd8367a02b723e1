package ui

import (
	"html/template"

	"github.com/pulse-retention/pulse-dashboard/internal/roi"
	"github.com/pulse-retention/pulse-dashboard/internal/roi/svg"
)

// MaxBatchRows bounds how many batch rows the dashboard table displays.
// The API may return more; the page truncates for readability.
const MaxBatchRows = 8

// MetricCard is one headline figure rendered on the dashboard.
type MetricCard struct {
	Label    string
	Value    float64
	Count    int64
	HasCount bool
	Hint     string
}

// BatchRow is one entry of the batch savings table.
type BatchRow struct {
	Name           string
	Savings        float64
	HighRiskCount  int64
	TotalCustomers int64
	Date           string
}

// SegmentRow pairs a risk band with its share of the at-risk value.
type SegmentRow struct {
	Name  string
	Value float64
	Count int64
	Color string
}

// DashboardViewModel combines all ROI data for rendering.
type DashboardViewModel struct {
	Cards            []MetricCard
	Batches          []BatchRow
	BatchesTruncated bool
	Segments         []SegmentRow
	PieSVG           template.HTML
	BarsSVG          template.HTML
	Empty            bool
}

// PieRenderer abstracts SVG pie chart rendering for the dashboard.
type PieRenderer interface {
	Pie(size int, slices []svg.Slice, opts svg.PieOpts) (template.HTML, error)
}

// HBarRenderer abstracts SVG horizontal bar rendering for the dashboard.
type HBarRenderer interface {
	HBars(width int, rows []svg.Row, opts svg.HBarOpts) (template.HTML, error)
}

// ToMetricCards converts headline metrics into dashboard cards.
func ToMetricCards(m roi.Metrics) []MetricCard {
	return []MetricCard{
		{Label: "Potential Revenue Saved", Value: m.TotalRevenue, Hint: "Monetary value of high-risk customers"},
		{Label: "High-Risk Customers", Count: m.TotalHighRisk, HasCount: true, Hint: "Churn probability above 50%"},
		{Label: "Customers Analyzed", Count: m.TotalCustomersAnalyzed, HasCount: true, Hint: "Across all completed batches"},
		{Label: "Avg Value per Batch", Value: m.AvgBatchValue, Hint: "At-risk value per prediction batch"},
	}
}

// ToBatchRows converts batch savings into table rows, truncating to
// MaxBatchRows.
func ToBatchRows(savings []roi.BatchSaving) ([]BatchRow, bool) {
	truncated := len(savings) > MaxBatchRows
	if truncated {
		savings = savings[:MaxBatchRows]
	}
	rows := make([]BatchRow, 0, len(savings))
	for _, saving := range savings {
		rows = append(rows, BatchRow{
			Name:           saving.BatchName,
			Savings:        saving.PotentialSavings,
			HighRiskCount:  saving.HighRiskCount,
			TotalCustomers: saving.TotalCustomers,
			Date:           saving.CreatedAt.Format("02 Jan 2006"),
		})
	}
	return rows, truncated
}

// ToSegmentRows converts risk segments to UI rows.
func ToSegmentRows(segments []roi.RiskSegment) []SegmentRow {
	rows := make([]SegmentRow, 0, len(segments))
	for _, segment := range segments {
		rows = append(rows, SegmentRow{
			Name:  segment.Name,
			Value: segment.Value,
			Count: segment.Count,
			Color: segment.Color,
		})
	}
	return rows
}

// ToPieSlices converts risk segments into pie slices.
func ToPieSlices(segments []roi.RiskSegment) []svg.Slice {
	slices := make([]svg.Slice, 0, len(segments))
	for _, segment := range segments {
		slices = append(slices, svg.Slice{
			Label: segment.Name,
			Value: segment.Value,
			Color: segment.Color,
		})
	}
	return slices
}

// ToBarRows converts batch savings into horizontal bar rows.
func ToBarRows(rows []BatchRow) []svg.Row {
	barRows := make([]svg.Row, 0, len(rows))
	for _, row := range rows {
		barRows = append(barRows, svg.Row{Label: row.Name, Value: row.Savings})
	}
	return barRows
}
