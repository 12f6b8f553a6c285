// Package quality regression-tests the extraction pipeline against a labeled
// corpus and aggregates the outcomes into trend reports.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/partlens/partlens/internal/pipeline"
)

// Scoring weights and thresholds. Text accuracy carries the most weight
// because recovered text is the primary product of the pipeline.
const (
	weightText       = 0.4
	weightObjects    = 0.3
	weightConfidence = 0.3

	passThreshold     = 0.7
	accuracyThreshold = 0.7
)

// Issue and recommendation text is fixed so occurrences can be counted
// across a run.
const (
	issueLowTextAccuracy   = "low text extraction accuracy"
	issueLowObjectAccuracy = "low object detection accuracy"
	issueLowConfidence     = "confidence below required minimum"
	issuePipelineFailure   = "pipeline processing failed"

	recTunePreprocessing = "tune preprocessing steps or the extraction prompt for this image category"
	recExtendKeywords    = "extend the object keyword table or refine the vision prompt"
	recReviewImage       = "review source image quality or adjust the minimum confidence for this case"
	recCheckServices     = "check OCR engine installation and vision API availability"
)

// Details carries the per-axis scores behind one validation outcome.
type Details struct {
	TextAccuracy     float64 `json:"text_accuracy"`
	ObjectAccuracy   float64 `json:"object_accuracy"`
	ConfidenceScore  float64 `json:"confidence_score"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Method           string  `json:"method"`
}

// ValidationResult is the scored outcome of one test case. Append-only,
// never mutated after creation.
type ValidationResult struct {
	TestCaseID      string   `json:"test_case_id"`
	Category        string   `json:"category"`
	Passed          bool     `json:"passed"`
	Score           float64  `json:"score"` // in [0, 1]
	Details         Details  `json:"details"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Processor is the pipeline surface the validator exercises.
type Processor interface {
	ProcessImage(ctx context.Context, imagePath string) pipeline.Result
}

// ImageResolver turns a test case's opaque image reference into a readable
// file path.
type ImageResolver interface {
	Resolve(ctx context.Context, imageRef string) (string, error)
}

type Validator struct {
	pipeline Processor
	images   ImageResolver
	log      *slog.Logger
}

func NewValidator(p Processor, images ImageResolver, logger *slog.Logger) (*Validator, error) {
	if p == nil {
		return nil, fmt.Errorf("quality: processor is required")
	}
	if images == nil {
		return nil, fmt.Errorf("quality: image resolver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{pipeline: p, images: images, log: logger}, nil
}

// ValidateCase runs one test case through the pipeline and scores the
// outcome. Any failure, including a panic, is recorded as a zero-score
// failing result; a single bad case never aborts a run.
func (v *Validator) ValidateCase(ctx context.Context, tc TestCase) (out ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("validate.case.panic", "case_id", tc.ID, "panic", r)
			out = failedCase(tc, fmt.Sprintf("validation panic: %v", r))
		}
	}()

	path, err := v.images.Resolve(ctx, tc.ImageRef)
	if err != nil {
		v.log.Warn("validate.case.image_unresolved", "case_id", tc.ID, "image_ref", tc.ImageRef, "error", err)
		return failedCase(tc, fmt.Sprintf("image %q could not be resolved: %v", tc.ImageRef, err))
	}

	res := v.pipeline.ProcessImage(ctx, path)
	out = scoreCase(tc, res)

	v.log.Info("validate.case.done",
		"case_id", tc.ID,
		"category", tc.Category,
		"passed", out.Passed,
		"score", out.Score,
		"method", out.Details.Method,
	)
	return out
}

// RunAll validates every case in order and aggregates the outcomes. The
// returned slice holds one result per case, in input order.
func (v *Validator) RunAll(ctx context.Context, cases []TestCase) (*QualityReport, []ValidationResult, error) {
	if len(cases) == 0 {
		return nil, nil, fmt.Errorf("quality: no test cases to run")
	}

	runID := uuid.New().String()
	v.log.Info("validate.run.start", "run_id", runID, "cases", len(cases))

	results := make([]ValidationResult, 0, len(cases))
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, results, fmt.Errorf("validation run aborted after %d of %d cases: %w", len(results), len(cases), err)
		}
		results = append(results, v.ValidateCase(ctx, tc))
	}

	report := BuildReport(results)
	v.log.Info("validate.run.done",
		"run_id", runID,
		"total", report.TotalTests,
		"passed", report.PassedTests,
		"avg_score", report.AverageScore,
	)
	return report, results, nil
}

// scoreCase compares one pipeline result against its ground truth. Pure.
func scoreCase(tc TestCase, res pipeline.Result) ValidationResult {
	textAcc := textAccuracy(tc.ExpectedTextFragments, res.Text)
	objAcc := objectAccuracy(tc.ExpectedObjects, res.Objects)
	confScore := confidenceScore(res.Confidence, tc.MinConfidence)

	score := weightText*textAcc + weightObjects*objAcc + weightConfidence*confScore
	passed := score >= passThreshold && res.Confidence >= tc.MinConfidence

	var issues, recs []string
	if !res.Success {
		issues = append(issues, issuePipelineFailure)
		recs = append(recs, recCheckServices)
	}
	if textAcc < accuracyThreshold {
		issues = append(issues, issueLowTextAccuracy)
		recs = append(recs, recTunePreprocessing)
	}
	if objAcc < accuracyThreshold {
		issues = append(issues, issueLowObjectAccuracy)
		recs = append(recs, recExtendKeywords)
	}
	if res.Confidence < tc.MinConfidence {
		issues = append(issues, issueLowConfidence)
		recs = append(recs, recReviewImage)
	}

	return ValidationResult{
		TestCaseID: tc.ID,
		Category:   tc.Category,
		Passed:     passed,
		Score:      score,
		Details: Details{
			TextAccuracy:     textAcc,
			ObjectAccuracy:   objAcc,
			ConfidenceScore:  confScore,
			ProcessingTimeMs: res.ProcessingTimeMs,
			Method:           res.Method,
		},
		Issues:          issues,
		Recommendations: recs,
		Error:           res.Error,
	}
}

func failedCase(tc TestCase, errMsg string) ValidationResult {
	return ValidationResult{
		TestCaseID:      tc.ID,
		Category:        tc.Category,
		Passed:          false,
		Score:           0,
		Details:         Details{Method: pipeline.MethodError},
		Issues:          []string{issuePipelineFailure},
		Recommendations: []string{recCheckServices},
		Error:           errMsg,
	}
}

// textAccuracy is the fraction of expected fragments present as
// case-insensitive substrings of the extracted text. An empty expectation
// list counts as fully accurate.
func textAccuracy(fragments []string, text string) float64 {
	if len(fragments) == 0 {
		return 1.0
	}
	lower := strings.ToLower(text)
	found := 0
	for _, f := range fragments {
		if strings.Contains(lower, strings.ToLower(f)) {
			found++
		}
	}
	return float64(found) / float64(len(fragments))
}

// objectAccuracy is the fraction of expected object labels present among the
// detected ones, matched case-insensitively.
func objectAccuracy(expected, detected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	seen := make(map[string]struct{}, len(detected))
	for _, d := range detected {
		seen[strings.ToLower(d)] = struct{}{}
	}
	found := 0
	for _, e := range expected {
		if _, ok := seen[strings.ToLower(e)]; ok {
			found++
		}
	}
	return float64(found) / float64(len(expected))
}

// confidenceScore is 1.0 once the minimum is met, otherwise the shortfall
// ratio. A non-positive minimum is always met.
func confidenceScore(confidence, minConfidence float64) float64 {
	if minConfidence <= 0 || confidence >= minConfidence {
		return 1.0
	}
	return confidence / minConfidence
}
