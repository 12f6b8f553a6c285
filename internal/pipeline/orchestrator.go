// Package pipeline coordinates the two extraction paths, OCR and AI vision,
// and reconciles their outputs into a single result per image.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partlens/partlens/constants"
	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/ocr"
	"github.com/partlens/partlens/internal/vision"
)

const (
	// DefaultConfidenceThreshold gates whether a single path's result is
	// trusted on its own under best_confidence.
	DefaultConfidenceThreshold = 0.7

	// DefaultPathTimeout bounds each extraction path independently.
	DefaultPathTimeout = 60 * time.Second
)

// OCRRunner is the OCR side of the pipeline.
type OCRRunner interface {
	RunAll(ctx context.Context, imagePath string) ([]ocr.ExtractionResult, error)
}

// VisionExtractor is the AI vision side of the pipeline.
type VisionExtractor interface {
	Extract(ctx context.Context, imagePath string) (*vision.Result, error)
}

// Config controls which paths run and how their outputs are merged.
type Config struct {
	EnableOCR           bool
	EnableVision        bool
	ConfidenceThreshold float64
	Strategy            MergeStrategy
	OCRTimeout          time.Duration
	VisionTimeout       time.Duration
}

func (c *Config) normalize() {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.Strategy == "" {
		c.Strategy = StrategyBestConfidence
	}
	if c.OCRTimeout <= 0 {
		c.OCRTimeout = DefaultPathTimeout
	}
	if c.VisionTimeout <= 0 {
		c.VisionTimeout = DefaultPathTimeout
	}
}

// Result is the final outcome for one image. ProcessImage always returns a
// Result; failures are reported through Success and Error, never panics.
type Result struct {
	Text             string   `json:"text"`
	Description      string   `json:"description"`
	Objects          []string `json:"objects"`
	Confidence       float64  `json:"confidence"`
	Method           string   `json:"method"`
	Strategy         string   `json:"strategy"`
	Details          Details  `json:"details"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Success          bool     `json:"success"`
	Error            string   `json:"error,omitempty"`
}

// Details preserves the raw per-path outputs for storage and inspection.
type Details struct {
	OCRResults   []ocr.ExtractionResult `json:"ocr_results,omitempty"`
	VisionResult *vision.Result         `json:"vision_result,omitempty"`
	Quality      QualityScores          `json:"quality"`
}

// Orchestrator fans an image out to both paths concurrently and merges
// whatever comes back.
type Orchestrator struct {
	cfg    Config
	ocr    OCRRunner
	vision VisionExtractor
	log    *slog.Logger
}

func New(ocrRunner OCRRunner, visionExtractor VisionExtractor, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	cfg.normalize()
	if !cfg.EnableOCR && !cfg.EnableVision {
		return nil, fmt.Errorf("pipeline: at least one extraction path must be enabled")
	}
	if _, ok := mergeFuncs[cfg.Strategy]; !ok {
		return nil, fmt.Errorf("pipeline: unknown merge strategy %q", cfg.Strategy)
	}
	if cfg.EnableOCR && ocrRunner == nil {
		return nil, fmt.Errorf("pipeline: ocr path enabled but no runner provided")
	}
	if cfg.EnableVision && visionExtractor == nil {
		return nil, fmt.Errorf("pipeline: vision path enabled but no extractor provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, ocr: ocrRunner, vision: visionExtractor, log: logger}, nil
}

// ProcessImage runs the enabled paths concurrently, each under its own
// timeout, and merges their outputs. A failed path degrades the result; it
// never aborts the other path or the caller.
func (p *Orchestrator) ProcessImage(ctx context.Context, imagePath string) (res Result) {
	start := time.Now()
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	log := p.log.With("req_id", rid, "image", filepath.Base(imagePath))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.panic", "panic", r)
			res = degraded(fmt.Sprintf("pipeline panic: %v", r), p.cfg.Strategy)
			res.ProcessingTimeMs = time.Since(start).Milliseconds()
		}
	}()

	log.Info("pipeline.process.start",
		"strategy", string(p.cfg.Strategy),
		"ocr", p.cfg.EnableOCR,
		"vision", p.cfg.EnableVision,
	)

	var (
		wg         sync.WaitGroup
		ocrResults []ocr.ExtractionResult
		ocrErr     error
		visRes     *vision.Result
		visErr     error
	)

	if p.cfg.EnableOCR {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					ocrErr = fmt.Errorf("ocr path panic: %v", r)
					log.Error("pipeline.ocr.panic", "panic", r)
				}
			}()
			octx, cancel := common.WithTimeout(ctx, p.cfg.OCRTimeout)
			defer cancel()
			ocrResults, ocrErr = p.ocr.RunAll(octx, imagePath)
		}()
	}

	if p.cfg.EnableVision {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					visErr = fmt.Errorf("vision path panic: %v", r)
					log.Error("pipeline.vision.panic", "panic", r)
				}
			}()
			vctx, cancel := common.WithTimeout(ctx, p.cfg.VisionTimeout)
			defer cancel()
			visRes, visErr = p.vision.Extract(vctx, imagePath)
		}()
	}

	wg.Wait()

	if ocrErr != nil {
		log.Warn("pipeline.ocr.failed", "error", ocrErr)
	}
	if visErr != nil {
		log.Warn("pipeline.vision.failed", "error", visErr)
	}

	var best *ocr.ExtractionResult
	if len(ocrResults) > 0 {
		if b, err := ocr.SelectBest(ocrResults); err == nil {
			best = &b
		}
	}

	// Aggregate failure: every enabled path settled without data. The call
	// still returns normally, carrying the failure in the result.
	if best == nil && visRes == nil {
		msg := pathFailures(p.cfg, ocrErr, visErr)
		log.Error("pipeline.process.failed", "error", msg, "elapsed_ms", time.Since(start).Milliseconds())
		res = degraded(msg, p.cfg.Strategy)
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
		return res
	}

	merged := merge(p.cfg.Strategy, mergeInput{
		ocr:       best,
		vis:       visRes,
		threshold: p.cfg.ConfidenceThreshold,
	})
	quality := computeQualityScores(best, visRes, merged, len(ocrResults))

	res = Result{
		Text:        merged.Text,
		Description: merged.Description,
		Objects:     merged.Objects,
		Confidence:  merged.Confidence,
		Method:      merged.Method,
		Strategy:    merged.Strategy,
		Details: Details{
			OCRResults:   ocrResults,
			VisionResult: visRes,
			Quality:      quality,
		},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Success:          true,
	}

	log.Info("pipeline.process.ok",
		"method", res.Method,
		"confidence", res.Confidence,
		"objects", len(res.Objects),
		"text_overlap", quality.TextOverlap,
		"elapsed_ms", res.ProcessingTimeMs,
	)
	return res
}

func degraded(errMsg string, strategy MergeStrategy) Result {
	return Result{
		Objects:    []string{string(constants.ObjectError)},
		Confidence: MinMergedConfidence,
		Method:     MethodError,
		Strategy:   string(strategy),
		Success:    false,
		Error:      errMsg,
	}
}

func pathFailures(cfg Config, ocrErr, visErr error) string {
	var parts []string
	if cfg.EnableOCR {
		if ocrErr != nil {
			parts = append(parts, "ocr: "+ocrErr.Error())
		} else {
			parts = append(parts, "ocr: no text recognized")
		}
	}
	if cfg.EnableVision && visErr != nil {
		parts = append(parts, "vision: "+visErr.Error())
	}
	if len(parts) == 0 {
		return "no extraction path produced a result"
	}
	return "all extraction paths failed: " + strings.Join(parts, "; ")
}
