package roi

import (
	"context"

	"github.com/google/uuid"
)

// RiskSegment groups the monetary value at risk for one churn-risk band.
type RiskSegment struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Count int64   `json:"count"`
	Color string  `json:"color"`
}

// segmentOrder fixes the display order of risk bands.
var segmentOrder = []string{"Low", "Medium", "High", "Critical"}

// segmentColors are the display tokens per risk band.
var segmentColors = map[string]string{
	"Low":      "#10b981",
	"Medium":   "#f59e0b",
	"High":     "#ef4444",
	"Critical": "#991b1b",
}

// GetRiskValueDistribution returns the monetary value at risk per segment in
// fixed band order. Segments with no high-risk customers are omitted.
func (s *Service) GetRiskValueDistribution(ctx context.Context, orgID uuid.UUID) ([]RiskSegment, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.RiskDistribution(ctx, orgID)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]SegmentRow, len(rows))
		for _, row := range rows {
			byName[row.Segment] = row
		}
		segments := make([]RiskSegment, 0, len(segmentOrder))
		for _, name := range segmentOrder {
			row, ok := byName[name]
			if !ok || row.Count == 0 {
				continue
			}
			segments = append(segments, RiskSegment{
				Name:  name,
				Value: round2(row.Value),
				Count: row.Count,
				Color: segmentColors[name],
			})
		}
		return segments, nil
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]RiskSegment), nil
	}

	key, err := s.cache.BuildKey(ctx, keyDistribution(orgID))
	if err != nil {
		return nil, err
	}
	var segments []RiskSegment
	if err := s.cache.FetchJSON(ctx, key, &segments, loader); err != nil {
		return nil, err
	}
	return segments, nil
}
