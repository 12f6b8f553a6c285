package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/partlens/partlens/constants"
	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/pipeline"
)

// ScanResult is one persisted pipeline outcome for an image. History is
// append-only; reads are latest-wins per image reference.
type ScanResult struct {
	ID        string               `json:"id"`
	ImageRef  string               `json:"image_ref"`
	Status    constants.ScanStatus `json:"status"`
	Result    pipeline.Result      `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
}

func NewScanResult(imageRef string, res pipeline.Result) ScanResult {
	return ScanResult{
		ID:        uuid.New().String(),
		ImageRef:  imageRef,
		Status:    statusFor(res),
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
}

// statusFor maps a pipeline outcome onto a scan status: FAILED when the
// call failed outright, PARTIAL when one path contributed nothing.
func statusFor(res pipeline.Result) constants.ScanStatus {
	if !res.Success {
		return constants.ScanStatusFailed
	}
	if len(res.Details.OCRResults) == 0 || res.Details.VisionResult == nil {
		return constants.ScanStatusPartial
	}
	return constants.ScanStatusDone
}

func (s *Store) SaveScanResult(ctx context.Context, rec ScanResult) error {
	objects, err := jsonColumn(rec.Result.Objects)
	if err != nil {
		return fmt.Errorf("encoding objects: %w", err)
	}
	details, err := jsonColumn(rec.Result.Details)
	if err != nil {
		return fmt.Errorf("encoding details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_results
			(id, image_ref, status, text, description, objects, confidence,
			 method, strategy, details, processing_ms, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ImageRef, string(rec.Status),
		rec.Result.Text, rec.Result.Description, objects, rec.Result.Confidence,
		rec.Result.Method, rec.Result.Strategy, details,
		rec.Result.ProcessingTimeMs, rec.Result.Success, rec.Result.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting scan result %s: %w", rec.ID, err)
	}

	s.log.Info("store.scan.saved",
		"scan_id", rec.ID,
		"image_ref", rec.ImageRef,
		"status", string(rec.Status),
		"confidence", rec.Result.Confidence,
	)
	return nil
}

// LatestScanResult returns the most recently inserted result for an image.
func (s *Store) LatestScanResult(ctx context.Context, imageRef string) (*ScanResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, image_ref, status, text, description, objects, confidence,
		       method, strategy, details, processing_ms, success, error, created_at
		FROM scan_results
		WHERE image_ref = ?
		ORDER BY rowid DESC
		LIMIT 1`, imageRef)

	rec, err := scanResultRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan result for %q: %w", imageRef, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading scan result for %q: %w", imageRef, err)
	}
	return rec, nil
}

// ListScanResults returns up to limit results, newest first.
func (s *Store) ListScanResults(ctx context.Context, limit int) ([]ScanResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_ref, status, text, description, objects, confidence,
		       method, strategy, details, processing_ms, success, error, created_at
		FROM scan_results
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan results: %w", err)
	}
	defer rows.Close()

	var out []ScanResult
	for rows.Next() {
		rec, err := scanResultRow(rows)
		if err != nil {
			return nil, fmt.Errorf("reading scan result row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResultRow(row rowScanner) (*ScanResult, error) {
	var (
		rec     ScanResult
		status  string
		objects string
		details string
	)
	err := row.Scan(
		&rec.ID, &rec.ImageRef, &status,
		&rec.Result.Text, &rec.Result.Description, &objects, &rec.Result.Confidence,
		&rec.Result.Method, &rec.Result.Strategy, &details,
		&rec.Result.ProcessingTimeMs, &rec.Result.Success, &rec.Result.Error,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = constants.ScanStatus(status)
	if err := json.Unmarshal([]byte(objects), &rec.Result.Objects); err != nil {
		return nil, fmt.Errorf("decoding objects: %w", err)
	}
	if err := json.Unmarshal([]byte(details), &rec.Result.Details); err != nil {
		return nil, fmt.Errorf("decoding details: %w", err)
	}
	return &rec, nil
}

// jsonColumn encodes v for a TEXT column, normalizing nil slices and maps to
// their empty JSON forms.
func jsonColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		switch v.(type) {
		case []string:
			return "[]", nil
		default:
			return "{}", nil
		}
	}
	return s, nil
}
