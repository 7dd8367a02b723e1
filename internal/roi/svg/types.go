package svg

// PieOpts customises the pie chart renderer.
type PieOpts struct {
	Title       string
	Description string
	LabelColor  string
	ShowLegend  bool
}

// HBarOpts customises the horizontal bar chart renderer.
type HBarOpts struct {
	Title       string
	Description string
	BarColor    string
	TrackColor  string
	LabelColor  string
}

// Defaults for the ROI charts.
const (
	DefaultPieSize    = 240
	DefaultPiePadding = 8.0
	DefaultBarWidth   = 720
	DefaultRowHeight  = 28.0
	DefaultBarPadding = 16.0
)
