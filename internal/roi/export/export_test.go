package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulse-retention/pulse-dashboard/internal/roi"
)

func TestWriteMetricsCSV(t *testing.T) {
	metrics := roi.Metrics{TotalRevenue: 12500.5, TotalBatches: 4, TotalHighRisk: 42}
	buf := &bytes.Buffer{}
	if err := WriteMetricsCSV(buf, metrics); err != nil {
		t.Fatalf("metrics csv error: %v", err)
	}
	reader := csv.NewReader(bytes.NewReader(buf.Bytes()))
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("expected header plus six rows, got %d", len(records))
	}
	if records[1][1] != "12500.50" {
		t.Fatalf("expected fixed-point value, got %q", records[1][1])
	}
}

func TestWriteBatchSavingsCSV(t *testing.T) {
	savings := []roi.BatchSaving{
		{BatchID: uuid.New(), BatchName: "Q1 import", PotentialSavings: 900, HighRiskCount: 3, TotalCustomers: 50, CreatedAt: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
	}
	buf := &bytes.Buffer{}
	if err := WriteBatchSavingsCSV(buf, savings); err != nil {
		t.Fatalf("savings csv error: %v", err)
	}
	reader := csv.NewReader(bytes.NewReader(buf.Bytes()))
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d", len(records))
	}
	if records[1][0] != "Q1 import" || records[1][4] != "2025-02-10" {
		t.Fatalf("unexpected row %v", records[1])
	}
}

func TestWriteDistributionCSV(t *testing.T) {
	segments := []roi.RiskSegment{
		{Name: "High", Value: 4000, Count: 8, Color: "#ef4444"},
		{Name: "Critical", Value: 1500.25, Count: 2, Color: "#991b1b"},
	}
	buf := &bytes.Buffer{}
	if err := WriteDistributionCSV(buf, segments); err != nil {
		t.Fatalf("distribution csv error: %v", err)
	}
	reader := csv.NewReader(bytes.NewReader(buf.Bytes()))
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(records))
	}
	if records[2][1] != "1500.25" {
		t.Fatalf("unexpected value %q", records[2][1])
	}
}
