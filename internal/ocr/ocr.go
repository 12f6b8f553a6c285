// Package ocr runs an external OCR engine under multiple preprocessing
// strategies and scores each candidate from the shape of its text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/partlens/partlens/internal/imaging"
)

type Config struct {
	Language string // default "eng"
}

// ExtractionResult is one strategy's output. Immutable once created.
type ExtractionResult struct {
	Text                 string         `json:"text"`
	Confidence           float64        `json:"confidence"` // in [MinConfidence, MaxConfidence]
	Method               string         `json:"method"`     // strategy name
	PreprocessingApplied []imaging.Step `json:"preprocessing_applied"`
	Warnings             []string       `json:"warnings,omitempty"`
	DurationMs           int64          `json:"duration_ms"`
}

// Extractor runs every strategy in the fixed table against an image.
type Extractor struct {
	cfg    Config
	engine Engine
	pre    *imaging.Preprocessor
	logger *slog.Logger
}

func NewExtractor(engine Engine, pre *imaging.Preprocessor, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if pre == nil {
		pre = imaging.NewPreprocessor(imaging.Config{Logger: logger})
	}
	return &Extractor{cfg: cfg, engine: engine, pre: pre, logger: logger}
}

// RunAll tries every strategy sequentially, skipping individual failures.
// The call fails only when every strategy fails; the aggregate error keeps
// ErrEngineUnavailable visible when a missing engine is the cause.
func (e *Extractor) RunAll(ctx context.Context, imagePath string) ([]ExtractionResult, error) {
	strategies := Strategies()
	results := make([]ExtractionResult, 0, len(strategies))
	var failures []error

	for _, s := range strategies {
		res, err := e.runStrategy(ctx, imagePath, s)
		if err != nil {
			e.logger.Warn("ocr.strategy.failed", "strategy", s.Name, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		e.logger.Debug("ocr.strategy.done",
			"strategy", s.Name,
			"confidence", res.Confidence,
			"text_len", len(res.Text),
			"elapsed_ms", res.DurationMs)
		results = append(results, res)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("all %d ocr strategies failed: %w", len(strategies), errors.Join(failures...))
	}
	return results, nil
}

func (e *Extractor) runStrategy(ctx context.Context, imagePath string, s Strategy) (ExtractionResult, error) {
	start := time.Now()

	path := imagePath
	var applied []imaging.Step
	var warnings []string
	if len(s.Steps) > 0 {
		derived, cleanup, err := e.pre.Preprocess(ctx, imagePath, s.Steps)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			return ExtractionResult{}, fmt.Errorf("preprocess: %w", err)
		}
		path = derived.Path
		applied = derived.Applied
		warnings = derived.Warnings
	}

	params := s.Params
	if params.Language == "" {
		params.Language = e.cfg.Language
	}

	raw, err := e.engine.Recognize(ctx, path, params)
	if err != nil {
		return ExtractionResult{}, err
	}

	text := Normalize(raw)
	if text == "" {
		return ExtractionResult{}, ErrNoText
	}

	return ExtractionResult{
		Text:                 text,
		Confidence:           Confidence(text, s.Name),
		Method:               s.Name,
		PreprocessingApplied: applied,
		Warnings:             warnings,
		DurationMs:           time.Since(start).Milliseconds(),
	}, nil
}

// SelectBest picks the strongest candidate. Confidence decides when the gap
// is over 0.1; otherwise the longer text wins, since more product detail is
// assumed more useful. Zero candidates is an error.
func SelectBest(results []ExtractionResult) (ExtractionResult, error) {
	if len(results) == 0 {
		return ExtractionResult{}, errors.New("no ocr candidates")
	}
	best := results[0]
	for _, r := range results[1:] {
		switch {
		case r.Confidence > best.Confidence+0.1:
			best = r
		case best.Confidence > r.Confidence+0.1:
			// keep best
		case len(r.Text) > len(best.Text):
			best = r
		}
	}
	return best, nil
}
