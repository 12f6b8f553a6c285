// Package report renders quality report history as an HTML trend chart so
// accuracy drift is visible across validation runs.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/partlens/partlens/internal/quality"
)

// RenderTrendHTML writes a line chart of average score and pass rate over the
// given report history, oldest first.
func RenderTrendHTML(w io.Writer, history []quality.QualityReport) error {
	if len(history) == 0 {
		return fmt.Errorf("no report history to render")
	}

	labels := make([]string, 0, len(history))
	scores := make([]opts.LineData, 0, len(history))
	passRates := make([]opts.LineData, 0, len(history))
	latencies := make([]opts.BarData, 0, len(history))
	for _, r := range history {
		labels = append(labels, r.CreatedAt.Format("2006-01-02 15:04"))
		scores = append(scores, opts.LineData{Value: r.AverageScore})
		passRates = append(passRates, opts.LineData{Value: r.PassRate})
		latencies = append(latencies, opts.BarData{Value: r.AverageLatencyMs})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Extraction Quality Trend",
			Width:     "1100px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Extraction Quality Trend",
			Subtitle: fmt.Sprintf("runs=%d latest_pass_rate=%.2f", len(history), history[len(history)-1].PassRate),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "score", Min: 0, Max: 1}),
		charts.WithXAxisOpts(opts.XAxis{Name: "run"}),
	)

	line.SetXAxis(labels).
		AddSeries("average score", scores).
		AddSeries("pass rate", passRates).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "1100px",
			Height: "300px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Average Latency"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	bar.SetXAxis(labels).AddSeries("average latency (ms)", latencies)

	page := components.NewPage()
	page.PageTitle = "Extraction Quality Trend"
	page.AddCharts(line, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render trend page: %w", err)
	}
	return nil
}
