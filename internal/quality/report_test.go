package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportFixture() []ValidationResult {
	return []ValidationResult{
		{
			Passed:   true,
			Score:    0.9,
			Category: "labels",
			Details:  Details{ProcessingTimeMs: 100, Method: "ai_vision_primary"},
		},
		{
			Passed:          false,
			Score:           0.5,
			Category:        "labels",
			Details:         Details{ProcessingTimeMs: 200, Method: "ocr_primary"},
			Issues:          []string{issueLowTextAccuracy, issueLowConfidence},
			Recommendations: []string{recTunePreprocessing},
		},
		{
			Passed:   true,
			Score:    0.7,
			Category: "barcodes",
			Details:  Details{ProcessingTimeMs: 300, Method: "ai_vision_primary"},
			Issues:   []string{issueLowConfidence},
		},
	}
}

func TestBuildReportAggregates(t *testing.T) {
	results := reportFixture()
	report := BuildReport(results)

	assert.NotEmpty(t, report.ID)
	assert.False(t, report.CreatedAt.IsZero())

	assert.Equal(t, len(results), report.TotalTests)
	assert.Equal(t, 2, report.PassedTests)
	assert.Equal(t, 1, report.FailedTests)
	assert.LessOrEqual(t, report.PassedTests, report.TotalTests)
	assert.InDelta(t, 2.0/3.0, report.PassRate, 1e-9)

	assert.InDelta(t, 0.7, report.AverageScore, 1e-9, "mean of 0.9, 0.5, 0.7")
	assert.InDelta(t, 200, report.AverageLatencyMs, 1e-9)
	assert.InDelta(t, 300, report.P95LatencyMs, 1e-9)
}

func TestBuildReportBreakdowns(t *testing.T) {
	report := BuildReport(reportFixture())

	vision := report.ByMethod["ai_vision_primary"]
	assert.Equal(t, 2, vision.Total)
	assert.Equal(t, 2, vision.Passed)
	assert.InDelta(t, 0.8, vision.AverageScore, 1e-9)

	ocr := report.ByMethod["ocr_primary"]
	assert.Equal(t, 1, ocr.Total)
	assert.Equal(t, 0, ocr.Passed)

	labels := report.ByCategory["labels"]
	assert.Equal(t, 2, labels.Total)
	assert.Equal(t, 1, labels.Passed)
	assert.InDelta(t, 0.7, labels.AverageScore, 1e-9)

	assert.Equal(t, 1, report.ByCategory["barcodes"].Total)
}

func TestBuildReportTopIssues(t *testing.T) {
	report := BuildReport(reportFixture())

	require.Len(t, report.TopIssues, 2)
	assert.Equal(t, Frequency{Text: issueLowConfidence, Count: 2}, report.TopIssues[0])
	assert.Equal(t, Frequency{Text: issueLowTextAccuracy, Count: 1}, report.TopIssues[1])

	require.Len(t, report.TopRecommendations, 1)
	assert.Equal(t, Frequency{Text: recTunePreprocessing, Count: 1}, report.TopRecommendations[0])
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil)

	assert.Equal(t, 0, report.TotalTests)
	assert.Zero(t, report.AverageScore)
	assert.Empty(t, report.ByMethod)
	assert.Empty(t, report.TopIssues)
}

func TestTopFrequencies(t *testing.T) {
	t.Run("ties keep first appearance order", func(t *testing.T) {
		got := topFrequencies([]string{"c", "a", "b", "a", "c"}, 5)
		want := []Frequency{{Text: "c", Count: 2}, {Text: "a", Count: 2}, {Text: "b", Count: 1}}
		assert.Equal(t, want, got)
	})

	t.Run("caps at n", func(t *testing.T) {
		got := topFrequencies([]string{"a", "b", "c", "d", "e", "f", "g"}, 5)
		assert.Len(t, got, 5)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, topFrequencies(nil, 5))
	})
}
