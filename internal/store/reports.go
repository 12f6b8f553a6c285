package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/partlens/partlens/internal/quality"
)

// SaveRun appends one validation run: the report row plus one row per case
// result, all in a single transaction.
func (s *Store) SaveRun(ctx context.Context, report *quality.QualityReport, results []quality.ValidationResult) error {
	byMethod, err := jsonColumn(report.ByMethod)
	if err != nil {
		return fmt.Errorf("encoding method breakdown: %w", err)
	}
	byCategory, err := jsonColumn(report.ByCategory)
	if err != nil {
		return fmt.Errorf("encoding category breakdown: %w", err)
	}
	topIssues, err := json.Marshal(report.TopIssues)
	if err != nil {
		return fmt.Errorf("encoding top issues: %w", err)
	}
	topRecs, err := json.Marshal(report.TopRecommendations)
	if err != nil {
		return fmt.Errorf("encoding top recommendations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quality_reports
			(id, created_at, total_tests, passed_tests, failed_tests, pass_rate,
			 average_score, average_latency_ms, p95_latency_ms,
			 by_method, by_category, top_issues, top_recommendations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.CreatedAt, report.TotalTests, report.PassedTests,
		report.FailedTests, report.PassRate, report.AverageScore,
		report.AverageLatencyMs, report.P95LatencyMs,
		byMethod, byCategory, string(topIssues), string(topRecs),
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", report.ID, err)
	}

	for _, r := range results {
		details, err := jsonColumn(r.Details)
		if err != nil {
			return fmt.Errorf("encoding result details: %w", err)
		}
		issues, err := jsonColumn(r.Issues)
		if err != nil {
			return fmt.Errorf("encoding issues: %w", err)
		}
		recs, err := jsonColumn(r.Recommendations)
		if err != nil {
			return fmt.Errorf("encoding recommendations: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO validation_results
				(id, report_id, test_case_id, category, passed, score,
				 details, issues, recommendations, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), report.ID, r.TestCaseID, r.Category,
			r.Passed, r.Score, details, issues, recs, r.Error, report.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting validation result for case %s: %w", r.TestCaseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing validation run: %w", err)
	}

	s.log.Info("store.run.saved",
		"report_id", report.ID,
		"total", report.TotalTests,
		"passed", report.PassedTests,
	)
	return nil
}

// ListReports returns report history in chronological order. A non-positive
// limit returns everything.
func (s *Store) ListReports(ctx context.Context, limit int) ([]quality.QualityReport, error) {
	q := `
		SELECT id, created_at, total_tests, passed_tests, failed_tests, pass_rate,
		       average_score, average_latency_ms, p95_latency_ms,
		       by_method, by_category, top_issues, top_recommendations
		FROM quality_reports
		ORDER BY created_at, rowid`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []quality.QualityReport
	for rows.Next() {
		var (
			r          quality.QualityReport
			byMethod   string
			byCategory string
			topIssues  string
			topRecs    string
		)
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.TotalTests, &r.PassedTests,
			&r.FailedTests, &r.PassRate, &r.AverageScore, &r.AverageLatencyMs,
			&r.P95LatencyMs, &byMethod, &byCategory, &topIssues, &topRecs); err != nil {
			return nil, fmt.Errorf("reading report row: %w", err)
		}
		if err := json.Unmarshal([]byte(byMethod), &r.ByMethod); err != nil {
			return nil, fmt.Errorf("decoding method breakdown: %w", err)
		}
		if err := json.Unmarshal([]byte(byCategory), &r.ByCategory); err != nil {
			return nil, fmt.Errorf("decoding category breakdown: %w", err)
		}
		if err := json.Unmarshal([]byte(topIssues), &r.TopIssues); err != nil {
			return nil, fmt.Errorf("decoding top issues: %w", err)
		}
		if err := json.Unmarshal([]byte(topRecs), &r.TopRecommendations); err != nil {
			return nil, fmt.Errorf("decoding top recommendations: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResultsForReport returns the per-case rows of one run in insertion order.
func (s *Store) ResultsForReport(ctx context.Context, reportID string) ([]quality.ValidationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT test_case_id, category, passed, score, details, issues,
		       recommendations, error
		FROM validation_results
		WHERE report_id = ?
		ORDER BY rowid`, reportID)
	if err != nil {
		return nil, fmt.Errorf("listing results for report %s: %w", reportID, err)
	}
	defer rows.Close()

	var out []quality.ValidationResult
	for rows.Next() {
		var (
			r       quality.ValidationResult
			details string
			issues  string
			recs    string
		)
		if err := rows.Scan(&r.TestCaseID, &r.Category, &r.Passed, &r.Score,
			&details, &issues, &recs, &r.Error); err != nil {
			return nil, fmt.Errorf("reading validation result row: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &r.Details); err != nil {
			return nil, fmt.Errorf("decoding result details: %w", err)
		}
		if err := json.Unmarshal([]byte(issues), &r.Issues); err != nil {
			return nil, fmt.Errorf("decoding issues: %w", err)
		}
		if err := json.Unmarshal([]byte(recs), &r.Recommendations); err != nil {
			return nil, fmt.Errorf("decoding recommendations: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
