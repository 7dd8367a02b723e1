package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Row is one labelled entry in a horizontal bar chart.
type Row struct {
	Label string
	Value float64
}

// HBars renders horizontal proportional bars, one row per entry.
//
// Each bar's width is the row value relative to the maximum value in the
// data set. Empty input renders nothing and is not an error.
func HBars(width int, rows []Row, opts HBarOpts) (template.HTML, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if width <= 0 {
		width = DefaultBarWidth
	}

	values := make([]float64, len(rows))
	for i, row := range rows {
		values[i] = row.Value
	}
	widths := ProportionalWidths(values)

	barColor := fallback(opts.BarColor, "#0ea5e9")
	trackColor := fallback(opts.TrackColor, "#e2e8f0")
	labelColor := fallback(opts.LabelColor, "#475569")

	labelWidth := float64(width) * 0.35
	trackWidth := float64(width) - labelWidth - 2*DefaultBarPadding
	height := int(float64(len(rows))*DefaultRowHeight + 2*DefaultBarPadding)

	titleID := makeID(opts.Title, "hbar-title")
	descID := makeID(opts.Title, "hbar-desc")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID))
	b.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Bar chart"))))
	b.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Proportional comparison"))))

	for i, row := range rows {
		y := DefaultBarPadding + float64(i)*DefaultRowHeight
		barY := y + 6
		barH := DefaultRowHeight - 12
		barW := trackWidth * widths[i] / 100

		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"11\" text-anchor=\"end\">%s</text>",
			labelWidth-6, y+DefaultRowHeight/2+4, labelColor, template.HTMLEscapeString(row.Label)))
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" rx=\"3\"></rect>",
			labelWidth, barY, trackWidth, barH, trackColor))
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" rx=\"3\" aria-label=\"%s %s\"></rect>",
			labelWidth, barY, barW, barH, barColor, template.HTMLEscapeString(row.Label), template.HTMLEscapeString(formatTick(row.Value))))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>",
			labelWidth+trackWidth+4, y+DefaultRowHeight/2+4, labelColor, template.HTMLEscapeString(formatTick(row.Value))))
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// ProportionalWidths converts values into bar widths as percentages of the
// largest value. A non-positive maximum yields all-zero widths.
func ProportionalWidths(values []float64) []float64 {
	widths := make([]float64, len(values))
	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		return widths
	}
	for i, v := range values {
		if v > 0 {
			widths[i] = v / maxVal * 100
		}
	}
	return widths
}
