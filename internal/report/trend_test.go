package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partlens/partlens/internal/quality"
)

func TestRenderTrendHTML(t *testing.T) {
	history := []quality.QualityReport{
		{
			ID:               "r1",
			CreatedAt:        time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			TotalTests:       10,
			PassedTests:      7,
			PassRate:         0.7,
			AverageScore:     0.75,
			AverageLatencyMs: 900,
		},
		{
			ID:               "r2",
			CreatedAt:        time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
			TotalTests:       10,
			PassedTests:      9,
			PassRate:         0.9,
			AverageScore:     0.82,
			AverageLatencyMs: 850,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderTrendHTML(&buf, history))

	html := buf.String()
	assert.Contains(t, html, "average score")
	assert.Contains(t, html, "pass rate")
	assert.Contains(t, html, "average latency (ms)")
	assert.Contains(t, html, "2026-08-01 12:00")
}

func TestRenderTrendHTMLEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	err := RenderTrendHTML(&buf, nil)
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}
