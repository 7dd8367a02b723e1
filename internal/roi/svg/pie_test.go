package svg

import (
	"math"
	"strings"
	"testing"
)

func TestPieProducesSVG(t *testing.T) {
	html, err := Pie(240, []Slice{
		{Label: "Low", Value: 1200, Color: "#10b981"},
		{Label: "High", Value: 3400, Color: "#ef4444"},
	}, PieOpts{Title: "Value at risk", Description: "Monetary value by risk segment", ShowLegend: true})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if !strings.Contains(output, "<path") {
		t.Fatalf("expected arc paths in svg")
	}
	if !strings.Contains(output, "Low") {
		t.Fatalf("expected legend label")
	}
}

func TestPieZeroTotalRendersNothing(t *testing.T) {
	html, err := Pie(240, []Slice{
		{Label: "Low", Value: 0},
		{Label: "High", Value: 0},
	}, PieOpts{})
	if err != nil {
		t.Fatalf("zero total must not be an error: %v", err)
	}
	if html != "" {
		t.Fatalf("expected empty output for zero total, got %s", html)
	}
}

func TestPieEmptyInputRendersNothing(t *testing.T) {
	html, err := Pie(240, nil, PieOpts{})
	if err != nil {
		t.Fatalf("empty input must not be an error: %v", err)
	}
	if html != "" {
		t.Fatalf("expected empty output, got %s", html)
	}
}

func TestPieNegativeValueRejected(t *testing.T) {
	if _, err := Pie(240, []Slice{{Label: "Bad", Value: -1}}, PieOpts{}); err == nil {
		t.Fatalf("expected error for negative value")
	}
}

func TestPieSingleSliceDrawsFullCircle(t *testing.T) {
	html, err := Pie(240, []Slice{{Label: "All", Value: 10, Color: "#0ea5e9"}}, PieOpts{})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	if !strings.Contains(string(html), "<circle") {
		t.Fatalf("expected a full circle for a single slice, got %s", html)
	}
}

func TestSliceAnglesEqualSplit(t *testing.T) {
	angles := SliceAngles([]float64{50, 50})
	if len(angles) != 2 {
		t.Fatalf("expected 2 angles, got %d", len(angles))
	}
	if angles[0] != 180 || angles[1] != 180 {
		t.Fatalf("expected exact 180/180 split, got %v", angles)
	}
}

func TestSliceAnglesSumToFullCircle(t *testing.T) {
	angles := SliceAngles([]float64{1, 2, 3, 4, 5, 6, 7})
	sum := 0.0
	for _, a := range angles {
		sum += a
	}
	if math.Abs(sum-360) > 1e-9 {
		t.Fatalf("expected angles to sum to 360, got %.12f", sum)
	}
}

func TestSliceAnglesZeroTotal(t *testing.T) {
	if angles := SliceAngles([]float64{0, 0}); angles != nil {
		t.Fatalf("expected nil for zero total, got %v", angles)
	}
}

func TestPieLargeArcFlag(t *testing.T) {
	// One slice over 180 degrees must set the large-arc flag.
	html, err := Pie(240, []Slice{
		{Label: "Major", Value: 75, Color: "#ef4444"},
		{Label: "Minor", Value: 25, Color: "#10b981"},
	}, PieOpts{})
	if err != nil {
		t.Fatalf("pie renderer error: %v", err)
	}
	output := string(html)
	if !strings.Contains(output, " 1 1 ") {
		t.Fatalf("expected large-arc flag set for 270 degree slice: %s", output)
	}
}
