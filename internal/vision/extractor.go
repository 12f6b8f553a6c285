// Package vision extracts product text and metadata from a photo through a
// multimodal model API, degrading to raw text when the model ignores the
// structured contract.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/imaging"
)

// MethodTag marks results produced by the vision path.
const MethodTag = "ai_vision"

// fallbackConfidence applies when the model answers with useful but
// unstructured text.
const fallbackConfidence = 0.8

// Completer abstracts the chat completion call so the extractor can be
// tested against canned responses.
type Completer interface {
	Complete(ctx context.Context, prompt, imageDataURL string) (string, error)
}

// Result is one vision extraction.
type Result struct {
	ExtractedText   string   `json:"extracted_text"`
	DetectedObjects []string `json:"detected_objects"`
	Description     string   `json:"description"`
	Confidence      float64  `json:"confidence"` // in [0, 1]
	Method          string   `json:"method"`     // always MethodTag
	Reasoning       string   `json:"reasoning,omitempty"`
}

// wire matches the JSON contract in BuildExtractionJSONSchema.
type wire struct {
	ExtractedText   string   `json:"extracted_text"`
	DetectedObjects []string `json:"detected_objects"`
	Description     string   `json:"description"`
	Confidence      float64  `json:"confidence"`
	ExtractionNotes string   `json:"extraction_notes"`
}

// ExtractorConfig bounds the image payload sent to the API.
type ExtractorConfig struct {
	MaxDimension int // longest edge after downscaling, default 1024
	JPEGQuality  int // default 85
}

type Extractor struct {
	cfg    ExtractorConfig
	client Completer
	logger *slog.Logger
}

func NewExtractor(client Completer, cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 1024
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	return &Extractor{cfg: cfg, client: client, logger: logger}
}

// Extract compresses the image, submits it with the extraction prompt, and
// parses the structured response. Transport and API failures are returned to
// the caller; a response that is not the expected JSON degrades to raw text
// with a fixed confidence instead of failing.
func (e *Extractor) Extract(ctx context.Context, imagePath string) (*Result, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	e.logger.Info("vision.extract.start", "req_id", rid, "image", filepath.Base(imagePath))

	data, mimeType, err := imaging.CompressForVision(imagePath, e.cfg.MaxDimension, e.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("compress image: %w", err)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	content, err := e.client.Complete(ctx, buildExtractionPrompt(), dataURL)
	if err != nil {
		return nil, err
	}

	res := e.parseContent(rid, content)
	e.logger.Info("vision.extract.ok",
		"req_id", rid,
		"confidence", res.Confidence,
		"text_len", len(res.ExtractedText),
		"objects", len(res.DetectedObjects),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) parseContent(rid, content string) *Result {
	cleaned := stripCodeFences(content)

	schema := BuildExtractionJSONSchema()
	if err := ValidateJSONAgainstSchema(schema, []byte(cleaned)); err == nil {
		var w wire
		if err := json.Unmarshal([]byte(cleaned), &w); err == nil {
			return &Result{
				ExtractedText:   w.ExtractedText,
				DetectedObjects: w.DetectedObjects,
				Description:     w.Description,
				Confidence:      clamp01(w.Confidence),
				Method:          MethodTag,
				Reasoning:       w.ExtractionNotes,
			}
		}
	}

	e.logger.Warn("vision.extract.unstructured", "req_id", rid, "content_len", len(content))
	return &Result{
		ExtractedText: content,
		Confidence:    fallbackConfidence,
		Method:        MethodTag,
		Reasoning:     "response was not structured as expected; using raw text",
	}
}

func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
