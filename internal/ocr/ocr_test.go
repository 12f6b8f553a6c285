package ocr

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partlens/partlens/internal/imaging"
)

// stubEngine returns canned responses in strategy-table order.
type stubEngine struct {
	responses []stubResponse
	calls     int
	available error
}

type stubResponse struct {
	text string
	err  error
}

func (s *stubEngine) Recognize(_ context.Context, _ string, _ Params) (string, error) {
	if s.calls >= len(s.responses) {
		return "", errors.New("unexpected extra call")
	}
	r := s.responses[s.calls]
	s.calls++
	return r.text, r.err
}

func (s *stubEngine) Available(_ context.Context) error { return s.available }

func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 48, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xee
	}
	path := filepath.Join(t.TempDir(), "part.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newTestExtractor(engine Engine, t *testing.T) *Extractor {
	pre := imaging.NewPreprocessor(imaging.Config{ArtifactCacheDir: t.TempDir()})
	return NewExtractor(engine, pre, Config{}, nil)
}

func TestRunAllCollectsEveryStrategy(t *testing.T) {
	engine := &stubEngine{responses: []stubResponse{
		{text: "ACME Widget Model W-100"},
		{text: "889912345678"},
		{text: "ACME Widget\nMade in DE"},
		{text: "Input 12V 2A"},
	}}
	e := newTestExtractor(engine, t)

	results, err := e.RunAll(context.Background(), testImage(t))
	require.NoError(t, err)

	require.Len(t, results, 4)
	want := []string{StrategyProductLabel, StrategyBarcodeSerial, StrategyMixedText, StrategyFinePrint}
	for i, r := range results {
		assert.Equal(t, want[i], r.Method)
		assert.GreaterOrEqual(t, r.Confidence, MinConfidence)
		assert.LessOrEqual(t, r.Confidence, MaxConfidence)
		assert.NotEmpty(t, r.PreprocessingApplied)
	}
}

func TestRunAllSkipsFailedStrategies(t *testing.T) {
	engine := &stubEngine{responses: []stubResponse{
		{err: errors.New("blurred beyond recognition")},
		{text: "889912345678"},
		{err: ErrNoText},
		{text: "Input 12V 2A"},
	}}
	e := newTestExtractor(engine, t)

	results, err := e.RunAll(context.Background(), testImage(t))
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, StrategyBarcodeSerial, results[0].Method)
	assert.Equal(t, StrategyFinePrint, results[1].Method)
}

func TestRunAllAllFailedIsAggregateError(t *testing.T) {
	engine := &stubEngine{responses: []stubResponse{
		{err: errors.New("fail a")},
		{err: errors.New("fail b")},
		{err: errors.New("fail c")},
		{err: errors.New("fail d")},
	}}
	e := newTestExtractor(engine, t)

	_, err := e.RunAll(context.Background(), testImage(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 4 ocr strategies failed")
	assert.False(t, errors.Is(err, ErrEngineUnavailable))
}

func TestRunAllMissingEngineIsDistinguishable(t *testing.T) {
	missing := func() error { return ErrEngineUnavailable }
	engine := &stubEngine{responses: []stubResponse{
		{err: missing()}, {err: missing()}, {err: missing()}, {err: missing()},
	}}
	e := newTestExtractor(engine, t)

	_, err := e.RunAll(context.Background(), testImage(t))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngineUnavailable))
}

func TestRunStrategyNormalizesWhitespaceOnlyToNoText(t *testing.T) {
	engine := &stubEngine{responses: []stubResponse{
		{text: "   \n\t  \n"},
		{text: "ok text"},
		{text: "ok text"},
		{text: "ok text"},
	}}
	e := newTestExtractor(engine, t)

	results, err := e.RunAll(context.Background(), testImage(t))
	require.NoError(t, err)

	assert.Len(t, results, 3, "whitespace-only output should be dropped as no-text")
}
