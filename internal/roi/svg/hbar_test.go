package svg

import (
	"strings"
	"testing"
)

func TestProportionalWidths(t *testing.T) {
	widths := ProportionalWidths([]float64{10, 20, 5})
	want := []float64{50, 100, 25}
	for i := range want {
		if widths[i] != want[i] {
			t.Fatalf("width[%d]: expected %.0f%%, got %.2f%%", i, want[i], widths[i])
		}
	}
}

func TestProportionalWidthsZeroMax(t *testing.T) {
	widths := ProportionalWidths([]float64{0, 0})
	for i, w := range widths {
		if w != 0 {
			t.Fatalf("width[%d]: expected 0 for zero max, got %.2f", i, w)
		}
	}
}

func TestHBarsProducesSVG(t *testing.T) {
	html, err := HBars(720, []Row{
		{Label: "March upload", Value: 5400},
		{Label: "April upload", Value: 9100},
	}, HBarOpts{Title: "Savings per batch", Description: "Potential savings compared across batches"})
	if err != nil {
		t.Fatalf("hbars renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if !strings.Contains(output, "<rect") {
		t.Fatalf("expected rect bars in svg")
	}
	if !strings.Contains(output, "March upload") {
		t.Fatalf("expected row label in svg")
	}
}

func TestHBarsEmptyInputRendersNothing(t *testing.T) {
	html, err := HBars(720, nil, HBarOpts{})
	if err != nil {
		t.Fatalf("empty input must not be an error: %v", err)
	}
	if html != "" {
		t.Fatalf("expected empty output, got %s", html)
	}
}
