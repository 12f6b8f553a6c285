package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partlens/partlens/internal/pipeline"
)

type stubProcessor struct {
	byPath map[string]pipeline.Result
	res    pipeline.Result
	panics bool
}

func (s stubProcessor) ProcessImage(_ context.Context, imagePath string) pipeline.Result {
	if s.panics {
		panic("corrupt image buffer")
	}
	if r, ok := s.byPath[imagePath]; ok {
		return r
	}
	return s.res
}

type stubResolver struct {
	err error
}

func (s stubResolver) Resolve(_ context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return ref, nil
}

func testCase(fragments, objects []string, minConf float64) TestCase {
	return TestCase{
		ID:                    uuid.New().String(),
		ImageRef:              "corpus/img-1.jpg",
		ExpectedTextFragments: fragments,
		ExpectedObjects:       objects,
		MinConfidence:         minConf,
		Category:              "labels",
	}
}

func okResult(text string, objects []string, conf float64) pipeline.Result {
	return pipeline.Result{
		Text:       text,
		Objects:    objects,
		Confidence: conf,
		Method:     pipeline.MethodVisionPrimary,
		Success:    true,
	}
}

func TestScoreCasePerfect(t *testing.T) {
	tc := testCase([]string{"model-x200", "12v"}, []string{"power_supply"}, 0.7)
	res := okResult("MODEL-X200 12V 2A Adapter", []string{"product", "power_supply"}, 0.9)

	out := scoreCase(tc, res)

	assert.True(t, out.Passed)
	assert.InDelta(t, 1.0, out.Score, 1e-9)
	assert.InDelta(t, 1.0, out.Details.TextAccuracy, 1e-9, "fragments match case-insensitively")
	assert.InDelta(t, 1.0, out.Details.ObjectAccuracy, 1e-9)
	assert.InDelta(t, 1.0, out.Details.ConfidenceScore, 1e-9)
	assert.Empty(t, out.Issues)
	assert.Empty(t, out.Recommendations)
}

func TestScoreCasePartialMatch(t *testing.T) {
	tc := testCase([]string{"ANKER", "POWERCORE"}, []string{"battery", "charger"}, 0.8)
	res := okResult("ANKER something", []string{"product", "battery"}, 0.6)

	out := scoreCase(tc, res)

	// 0.4*0.5 + 0.3*0.5 + 0.3*(0.6/0.8)
	assert.InDelta(t, 0.575, out.Score, 1e-9)
	assert.False(t, out.Passed)
	assert.Equal(t, []string{issueLowTextAccuracy, issueLowObjectAccuracy, issueLowConfidence}, out.Issues)
	assert.Len(t, out.Recommendations, 3)
}

func TestScoreCaseEmptyExpectations(t *testing.T) {
	tc := testCase(nil, nil, 0.5)
	out := scoreCase(tc, okResult("", nil, 0.55))

	assert.InDelta(t, 1.0, out.Score, 1e-9, "empty expectation lists count as fully accurate")
	assert.True(t, out.Passed)
}

func TestScoreCaseConfidenceGateIsStrict(t *testing.T) {
	tc := testCase([]string{"abc"}, nil, 0.9)
	out := scoreCase(tc, okResult("abc def", nil, 0.85))

	assert.GreaterOrEqual(t, out.Score, passThreshold)
	assert.False(t, out.Passed, "a high score cannot compensate for missing the confidence minimum")
}

func TestScoreCasePipelineFailure(t *testing.T) {
	tc := testCase([]string{"abc"}, []string{"battery"}, 0.7)
	res := pipeline.Result{
		Objects:    []string{"error"},
		Confidence: 0.1,
		Method:     pipeline.MethodError,
		Success:    false,
		Error:      "all extraction paths failed",
	}
	out := scoreCase(tc, res)

	assert.False(t, out.Passed)
	assert.Contains(t, out.Issues, issuePipelineFailure)
	assert.Contains(t, out.Recommendations, recCheckServices)
	assert.Equal(t, "all extraction paths failed", out.Error)
}

func TestAccuracyHelpers(t *testing.T) {
	assert.InDelta(t, 0.5, textAccuracy([]string{"aa", "zz"}, "AA bb cc"), 1e-9)
	assert.InDelta(t, 1.0, textAccuracy(nil, "anything"), 1e-9)

	assert.InDelta(t, 1.0, objectAccuracy([]string{"BATTERY"}, []string{"battery", "product"}), 1e-9)
	assert.InDelta(t, 0.0, objectAccuracy([]string{"phone"}, []string{"battery"}), 1e-9)
	assert.InDelta(t, 1.0, objectAccuracy(nil, nil), 1e-9)

	assert.InDelta(t, 1.0, confidenceScore(0.9, 0.7), 1e-9)
	assert.InDelta(t, 0.5, confidenceScore(0.35, 0.7), 1e-9)
	assert.InDelta(t, 1.0, confidenceScore(0.2, 0), 1e-9, "no minimum means always met")
}

func TestValidateCaseIdempotent(t *testing.T) {
	tc := testCase([]string{"model-x200"}, []string{"power_supply"}, 0.7)
	proc := stubProcessor{res: okResult("MODEL-X200 12V", []string{"product", "power_supply"}, 0.9)}

	v, err := NewValidator(proc, stubResolver{}, nil)
	require.NoError(t, err)

	a := v.ValidateCase(context.Background(), tc)
	b := v.ValidateCase(context.Background(), tc)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same case scored differently (-first +second):\n%s", diff)
	}
}

func TestValidateCaseUnresolvableImage(t *testing.T) {
	tc := testCase([]string{"abc"}, nil, 0.7)
	proc := stubProcessor{res: okResult("abc", nil, 0.9)}

	v, err := NewValidator(proc, stubResolver{err: errors.New("image not found")}, nil)
	require.NoError(t, err)

	out := v.ValidateCase(context.Background(), tc)
	assert.False(t, out.Passed)
	assert.Zero(t, out.Score)
	assert.Contains(t, out.Error, "could not be resolved")
	assert.Contains(t, out.Issues, issuePipelineFailure)
}

func TestValidateCaseRecoversPanic(t *testing.T) {
	tc := testCase([]string{"abc"}, nil, 0.7)

	v, err := NewValidator(stubProcessor{panics: true}, stubResolver{}, nil)
	require.NoError(t, err)

	out := v.ValidateCase(context.Background(), tc)
	assert.False(t, out.Passed)
	assert.Zero(t, out.Score)
	assert.Contains(t, out.Error, "panic")
	assert.Equal(t, tc.ID, out.TestCaseID)
}

func TestRunAll(t *testing.T) {
	good := testCase([]string{"model-x200"}, []string{"power_supply"}, 0.7)
	good.ImageRef = "good.jpg"
	bad := testCase([]string{"serial"}, []string{"barcode"}, 0.7)
	bad.ImageRef = "bad.jpg"
	bad.Category = "barcodes"

	proc := stubProcessor{byPath: map[string]pipeline.Result{
		"good.jpg": okResult("MODEL-X200 12V", []string{"product", "power_supply"}, 0.9),
		"bad.jpg":  okResult("nothing useful", []string{"product"}, 0.3),
	}}

	v, err := NewValidator(proc, stubResolver{}, nil)
	require.NoError(t, err)

	report, results, err := v.RunAll(context.Background(), []TestCase{good, bad})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 2, report.TotalTests)
	assert.Equal(t, 1, report.PassedTests)
	assert.Equal(t, 1, report.FailedTests)

	wantMean := (results[0].Score + results[1].Score) / 2
	assert.InDelta(t, wantMean, report.AverageScore, 1e-9)

	assert.Equal(t, 1, report.ByCategory["labels"].Total)
	assert.Equal(t, 1, report.ByCategory["barcodes"].Total)
	assert.Equal(t, 0, report.ByCategory["barcodes"].Passed)
}

func TestRunAllRejectsEmptyCorpus(t *testing.T) {
	v, err := NewValidator(stubProcessor{}, stubResolver{}, nil)
	require.NoError(t, err)

	_, _, err = v.RunAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	v, err := NewValidator(stubProcessor{res: okResult("x", nil, 0.9)}, stubResolver{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = v.RunAll(ctx, []TestCase{testCase(nil, nil, 0.5)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTestCaseValidate(t *testing.T) {
	tc := testCase(nil, nil, 0.7)
	assert.NoError(t, tc.Validate())

	bad := tc
	bad.ID = "not-a-uuid"
	assert.Error(t, bad.Validate())

	bad = tc
	bad.MinConfidence = 1.5
	assert.Error(t, bad.Validate())

	bad = tc
	bad.ImageRef = ""
	assert.Error(t, bad.Validate())
}
