package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Slice is one pie segment with a display label and color token.
type Slice struct {
	Label string
	Value float64
	Color string
}

// Pie renders a proportional pie chart for the given slices.
//
// Slices are drawn in input order as cumulative arcs starting at the top of
// the circle. A zero cumulative value renders nothing: the empty result is
// not an error, it simply produces no chart.
func Pie(size int, slices []Slice, opts PieOpts) (template.HTML, error) {
	total := 0.0
	for _, s := range slices {
		if s.Value < 0 {
			return "", fmt.Errorf("svg: slice value must not be negative")
		}
		total += s.Value
	}
	if total == 0 {
		return "", nil
	}
	if size <= 0 {
		size = DefaultPieSize
	}

	center := float64(size) / 2
	radius := center - DefaultPiePadding
	if radius <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	labelColor := fallback(opts.LabelColor, "#475569")

	titleID := makeID(opts.Title, "pie-title")
	descID := makeID(opts.Title, "pie-desc")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", size, size, titleID, descID))
	b.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Pie chart"))))
	b.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Proportional distribution"))))

	startAngle := 0.0
	for i, s := range slices {
		if s.Value == 0 {
			continue
		}
		percentage := s.Value / total * 100
		sliceAngle := percentage / 100 * 360
		endAngle := startAngle + sliceAngle
		// The final slice closes the circle exactly, absorbing any
		// accumulated floating point drift.
		if i == len(slices)-1 {
			endAngle = 360
		}
		color := fallback(s.Color, "#64748b")
		label := fmt.Sprintf("%s %.1f%%", s.Label, percentage)

		if endAngle-startAngle >= 360-1e-9 {
			b.WriteString(fmt.Sprintf("<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"%s\" aria-label=\"%s\"></circle>",
				center, center, radius, color, template.HTMLEscapeString(label)))
			startAngle = endAngle
			continue
		}

		x1, y1 := pointOnCircle(center, radius, startAngle)
		x2, y2 := pointOnCircle(center, radius, endAngle)
		largeArc := 0
		if sliceAngle > 180 {
			largeArc = 1
		}
		path := fmt.Sprintf("M%.2f %.2f L%.2f %.2f A%.2f %.2f 0 %d 1 %.2f %.2f Z",
			center, center, x1, y1, radius, radius, largeArc, x2, y2)
		b.WriteString(fmt.Sprintf("<path d=\"%s\" fill=\"%s\" aria-label=\"%s\"></path>",
			path, color, template.HTMLEscapeString(label)))

		startAngle = endAngle
	}

	if opts.ShowLegend {
		y := float64(size) - 6
		x := DefaultPiePadding
		for _, s := range slices {
			if s.Value == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"8\" height=\"8\" fill=\"%s\"></rect>", x, y-8, fallback(s.Color, "#64748b")))
			b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"9\" text-anchor=\"start\">%s</text>", x+11, y, labelColor, template.HTMLEscapeString(s.Label)))
			x += 11 + 7*float64(len(s.Label)) + 10
		}
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// SliceAngles returns the angle in degrees each slice spans, in input order.
// A zero total yields nil.
func SliceAngles(values []float64) []float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return nil
	}
	angles := make([]float64, len(values))
	for i, v := range values {
		angles[i] = v / total * 360
	}
	return angles
}

// pointOnCircle maps an angle in degrees, measured clockwise from the top of
// the circle, to coordinates on its circumference.
func pointOnCircle(center, radius, angle float64) (float64, float64) {
	rad := (angle - 90) * math.Pi / 180
	return center + radius*math.Cos(rad), center + radius*math.Sin(rad)
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return fmt.Sprintf("%s-%s", cleaned, suffix)
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	default:
		if almostEqual(v, math.Round(v)) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%.2f", v)
	}
}
