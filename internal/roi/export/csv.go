package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pulse-retention/pulse-dashboard/internal/roi"
)

// WriteMetricsCSV serialises headline ROI metrics to CSV.
func WriteMetricsCSV(w io.Writer, metrics roi.Metrics) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Potential Revenue Saved", formatFloat(metrics.TotalRevenue)},
		{"Total Batches", strconv.FormatInt(metrics.TotalBatches, 10)},
		{"Customers Analyzed", strconv.FormatInt(metrics.TotalCustomersAnalyzed, 10)},
		{"High-Risk Customers", strconv.FormatInt(metrics.TotalHighRisk, 10)},
		{"Avg Value per Batch", formatFloat(metrics.AvgBatchValue)},
		{"Avg Value per Customer", formatFloat(metrics.AvgCustomerValue)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBatchSavingsCSV emits per-batch savings as CSV, newest first.
func WriteBatchSavingsCSV(w io.Writer, savings []roi.BatchSaving) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Batch", "Potential Savings", "High-Risk Customers", "Total Customers", "Created"}); err != nil {
		return err
	}
	for _, saving := range savings {
		if err := writer.Write([]string{
			saving.BatchName,
			formatFloat(saving.PotentialSavings),
			strconv.FormatInt(saving.HighRiskCount, 10),
			strconv.FormatInt(saving.TotalCustomers, 10),
			saving.CreatedAt.Format("2006-01-02"),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDistributionCSV prints the value at risk per churn-risk band.
func WriteDistributionCSV(w io.Writer, segments []roi.RiskSegment) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Segment", "Value", "Customers"}); err != nil {
		return err
	}
	for _, segment := range segments {
		if err := writer.Write([]string{
			segment.Name,
			formatFloat(segment.Value),
			strconv.FormatInt(segment.Count, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
