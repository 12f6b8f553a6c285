package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/partlens/partlens/internal/quality"
)

func runFixture() (*quality.QualityReport, []quality.ValidationResult) {
	results := []quality.ValidationResult{
		{
			TestCaseID: "case-1",
			Category:   "labels",
			Passed:     true,
			Score:      0.85,
			Details:    quality.Details{TextAccuracy: 1, ObjectAccuracy: 0.5, ConfidenceScore: 1, ProcessingTimeMs: 140, Method: "ai_vision_primary"},
		},
		{
			TestCaseID: "case-2",
			Category:   "barcodes",
			Passed:     false,
			Score:      0.4,
			Details:    quality.Details{TextAccuracy: 0.5, ProcessingTimeMs: 80, Method: "ocr_primary"},
			Issues:     []string{"low text extraction accuracy"},
			Error:      "ocr: no text recognized",
		},
	}
	return quality.BuildReport(results), results
}

func TestWriteReportXLSX(t *testing.T) {
	report, results := runFixture()

	b, err := WriteReportXLSX(report, results, nil)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	id, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, report.ID, id)

	total, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "2", total)

	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	require.Len(t, rows, len(results)+1, "header plus one row per case")
	assert.Equal(t, "Test Case", rows[0][0])
	assert.Equal(t, "case-1", rows[1][0])
	assert.Equal(t, "case-2", rows[2][0])
}

func TestWriteReportXLSXNilReport(t *testing.T) {
	_, err := WriteReportXLSX(nil, nil, nil)
	require.Error(t, err)
}

func TestWriteReportXLSXEmptyRun(t *testing.T) {
	report := quality.BuildReport(nil)

	b, err := WriteReportXLSX(report, nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
