package quality

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// topN bounds the most-frequent issue and recommendation lists.
const topN = 5

// PathStats summarizes validation outcomes for one method tag or category.
type PathStats struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	AverageScore float64 `json:"average_score"`
}

// Frequency is one counted issue or recommendation.
type Frequency struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// QualityReport aggregates one full validation run. Reports are append-only
// history; nothing mutates one after creation.
type QualityReport struct {
	ID                 string               `json:"id"`
	CreatedAt          time.Time            `json:"created_at"`
	TotalTests         int                  `json:"total_tests"`
	PassedTests        int                  `json:"passed_tests"`
	FailedTests        int                  `json:"failed_tests"`
	PassRate           float64              `json:"pass_rate"`
	AverageScore       float64              `json:"average_score"`
	AverageLatencyMs   float64              `json:"average_latency_ms"`
	P95LatencyMs       float64              `json:"p95_latency_ms"`
	ByMethod           map[string]PathStats `json:"by_method"`
	ByCategory         map[string]PathStats `json:"by_category"`
	TopIssues          []Frequency          `json:"top_issues"`
	TopRecommendations []Frequency          `json:"top_recommendations"`
}

// BuildReport aggregates per-case results into one report.
func BuildReport(results []ValidationResult) *QualityReport {
	report := &QualityReport{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		TotalTests: len(results),
		ByMethod:   make(map[string]PathStats),
		ByCategory: make(map[string]PathStats),
	}
	if len(results) == 0 {
		return report
	}

	scores := make([]float64, 0, len(results))
	latencies := make([]float64, 0, len(results))
	var issues, recs []string
	methods := newGrouped()
	categories := newGrouped()

	for _, r := range results {
		if r.Passed {
			report.PassedTests++
		}
		scores = append(scores, r.Score)
		latencies = append(latencies, float64(r.Details.ProcessingTimeMs))
		methods.add(r.Details.Method, r)
		categories.add(r.Category, r)
		issues = append(issues, r.Issues...)
		recs = append(recs, r.Recommendations...)
	}

	report.FailedTests = report.TotalTests - report.PassedTests
	report.PassRate = float64(report.PassedTests) / float64(report.TotalTests)
	report.AverageScore = stat.Mean(scores, nil)
	report.AverageLatencyMs = stat.Mean(latencies, nil)

	sort.Float64s(latencies)
	report.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, latencies, nil)

	report.ByMethod = methods.stats()
	report.ByCategory = categories.stats()
	report.TopIssues = topFrequencies(issues, topN)
	report.TopRecommendations = topFrequencies(recs, topN)
	return report
}

type grouped struct {
	entries map[string]*groupEntry
}

type groupEntry struct {
	total    int
	passed   int
	scoreSum float64
}

func newGrouped() *grouped {
	return &grouped{entries: make(map[string]*groupEntry)}
}

func (g *grouped) add(key string, r ValidationResult) {
	if key == "" {
		key = "unknown"
	}
	e := g.entries[key]
	if e == nil {
		e = &groupEntry{}
		g.entries[key] = e
	}
	e.total++
	if r.Passed {
		e.passed++
	}
	e.scoreSum += r.Score
}

func (g *grouped) stats() map[string]PathStats {
	out := make(map[string]PathStats, len(g.entries))
	for k, e := range g.entries {
		out[k] = PathStats{
			Total:        e.total,
			Passed:       e.passed,
			AverageScore: e.scoreSum / float64(e.total),
		}
	}
	return out
}

// topFrequencies counts occurrences and keeps the n most frequent entries.
// Ties keep first-appearance order, so reports stay stable across runs.
func topFrequencies(items []string, n int) []Frequency {
	if len(items) == 0 {
		return nil
	}
	counts := make(map[string]int, len(items))
	var order []string
	for _, s := range items {
		if _, ok := counts[s]; !ok {
			order = append(order, s)
		}
		counts[s]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	out := make([]Frequency, len(order))
	for i, s := range order {
		out[i] = Frequency{Text: s, Count: counts[s]}
	}
	return out
}
