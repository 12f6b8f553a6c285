package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/partlens/partlens/internal/quality"
)

// UpsertTestCase inserts or replaces one corpus entry, validating it first.
func (s *Store) UpsertTestCase(ctx context.Context, tc quality.TestCase) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	expectedText, err := jsonColumn(tc.ExpectedTextFragments)
	if err != nil {
		return fmt.Errorf("encoding expected text: %w", err)
	}
	expectedObjects, err := jsonColumn(tc.ExpectedObjects)
	if err != nil {
		return fmt.Errorf("encoding expected objects: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO test_cases
			(id, image_ref, expected_text, expected_objects, min_confidence,
			 category, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			image_ref = excluded.image_ref,
			expected_text = excluded.expected_text,
			expected_objects = excluded.expected_objects,
			min_confidence = excluded.min_confidence,
			category = excluded.category,
			description = excluded.description`,
		tc.ID, tc.ImageRef, expectedText, expectedObjects, tc.MinConfidence,
		tc.Category, tc.Description, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting test case %s: %w", tc.ID, err)
	}
	return nil
}

// ListTestCases returns the whole corpus in insertion order, which keeps
// downstream tie-breaking stable across runs.
func (s *Store) ListTestCases(ctx context.Context) ([]quality.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_ref, expected_text, expected_objects, min_confidence,
		       category, description
		FROM test_cases
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing test cases: %w", err)
	}
	defer rows.Close()

	var out []quality.TestCase
	for rows.Next() {
		var (
			tc              quality.TestCase
			expectedText    string
			expectedObjects string
		)
		if err := rows.Scan(&tc.ID, &tc.ImageRef, &expectedText, &expectedObjects,
			&tc.MinConfidence, &tc.Category, &tc.Description); err != nil {
			return nil, fmt.Errorf("reading test case row: %w", err)
		}
		if err := json.Unmarshal([]byte(expectedText), &tc.ExpectedTextFragments); err != nil {
			return nil, fmt.Errorf("decoding expected text for %s: %w", tc.ID, err)
		}
		if err := json.Unmarshal([]byte(expectedObjects), &tc.ExpectedObjects); err != nil {
			return nil, fmt.Errorf("decoding expected objects for %s: %w", tc.ID, err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
