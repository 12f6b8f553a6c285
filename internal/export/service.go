// Package export renders quality reports as XLSX workbooks for operators who
// track extraction accuracy outside the pipeline.
package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/partlens/partlens/internal/quality"
)

const (
	summarySheet = "Summary"
	casesSheet   = "Cases"
)

// WriteReportXLSX returns an XLSX workbook (as bytes) for one validation run:
// a summary sheet with the aggregate numbers plus one row per case result.
func WriteReportXLSX(report *quality.QualityReport, results []quality.ValidationResult, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if report == nil {
		return nil, fmt.Errorf("report is required")
	}
	start := time.Now()

	f := excelize.NewFile()
	if err := writeSummarySheet(f, report); err != nil {
		return nil, err
	}
	if err := writeCasesSheet(f, results); err != nil {
		return nil, err
	}

	// Drop the default sheet so the workbook opens on the summary.
	_ = f.DeleteSheet("Sheet1")
	if index, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	logger.Info("export.report.xlsx",
		"report_id", report.ID,
		"cases", len(results),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, report *quality.QualityReport) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", summarySheet, err)
	}

	write := func(row int, label string, v any) {
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(summarySheet, labelCell, label)
		_ = f.SetCellValue(summarySheet, valueCell, v)
	}

	write(1, "Report ID", report.ID)
	write(2, "Created At", report.CreatedAt.Format(time.RFC3339))
	write(3, "Total Tests", report.TotalTests)
	write(4, "Passed Tests", report.PassedTests)
	write(5, "Failed Tests", report.FailedTests)
	write(6, "Pass Rate", report.PassRate)
	write(7, "Average Score", report.AverageScore)
	write(8, "Average Latency (ms)", report.AverageLatencyMs)
	write(9, "P95 Latency (ms)", report.P95LatencyMs)

	row := 11
	section := func(title string) {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(summarySheet, cell, title)
		row++
	}

	section("Top Issues")
	for _, fr := range report.TopIssues {
		write(row, fr.Text, fr.Count)
		row++
	}
	row++

	section("Top Recommendations")
	for _, fr := range report.TopRecommendations {
		write(row, fr.Text, fr.Count)
		row++
	}
	row++

	section("Passed by Method")
	for method, stats := range report.ByMethod {
		write(row, method, fmt.Sprintf("%d/%d", stats.Passed, stats.Total))
		row++
	}
	row++

	section("Passed by Category")
	for category, stats := range report.ByCategory {
		write(row, category, fmt.Sprintf("%d/%d", stats.Passed, stats.Total))
		row++
	}
	return nil
}

func writeCasesSheet(f *excelize.File, results []quality.ValidationResult) error {
	if _, err := f.NewSheet(casesSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", casesSheet, err)
	}

	headers := []string{
		"Test Case",
		"Category",
		"Passed",
		"Score",
		"Text Accuracy",
		"Object Accuracy",
		"Confidence Score",
		"Method",
		"Latency (ms)",
		"Issues",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(casesSheet, cell, h)
	}

	for i, r := range results {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(casesSheet, cell, v)
		}
		write(1, r.TestCaseID)
		write(2, r.Category)
		write(3, r.Passed)
		write(4, r.Score)
		write(5, r.Details.TextAccuracy)
		write(6, r.Details.ObjectAccuracy)
		write(7, r.Details.ConfidenceScore)
		write(8, r.Details.Method)
		write(9, r.Details.ProcessingTimeMs)
		write(10, strings.Join(r.Issues, "\n"))
		write(11, r.Error)
	}
	return nil
}
