package imaging

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestParseSteps(t *testing.T) {
	steps, unknown := ParseSteps([]string{"enhance_contrast", "blurify", "deskew"})

	assert.Equal(t, []Step{StepEnhanceContrast, StepDeskew}, steps)
	assert.Equal(t, []string{"blurify"}, unknown)
}

func TestPreprocessAppliesStepsInOrder(t *testing.T) {
	src := writePNG(t, stripes(120, 120, 0))
	p := NewPreprocessor(Config{ArtifactCacheDir: t.TempDir()})

	d, cleanup, err := p.Preprocess(context.Background(), src, []Step{StepEnhanceContrast, StepSharpen})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []Step{StepEnhanceContrast, StepSharpen}, d.Applied)
	assert.Empty(t, d.Skipped)

	_, err = os.Stat(d.Path)
	assert.NoError(t, err, "derived artifact should exist")
}

func TestPreprocessSkipsUnknownStep(t *testing.T) {
	src := writePNG(t, uniformGray(64, 64, 200))
	p := NewPreprocessor(Config{ArtifactCacheDir: t.TempDir()})

	d, cleanup, err := p.Preprocess(context.Background(), src, []Step{Step("sparkle"), StepDenoise})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []Step{StepDenoise}, d.Applied)
	assert.Equal(t, []Step{Step("sparkle")}, d.Skipped)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "sparkle")
}

func TestPreprocessDeskewWithoutReliableAngleIsObservable(t *testing.T) {
	src := writePNG(t, stripes(200, 200, 0))
	p := NewPreprocessor(Config{ArtifactCacheDir: t.TempDir()})

	d, cleanup, err := p.Preprocess(context.Background(), src, []Step{StepDeskew})
	require.NoError(t, err)
	defer cleanup()

	assert.Empty(t, d.Applied)
	assert.Equal(t, []Step{StepDeskew}, d.Skipped)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "deskew")
}

func TestPreprocessCleanupRemovesArtifact(t *testing.T) {
	src := writePNG(t, uniformGray(32, 32, 128))
	p := NewPreprocessor(Config{ArtifactCacheDir: t.TempDir()})

	d, cleanup, err := p.Preprocess(context.Background(), src, []Step{StepEnhanceContrast})
	require.NoError(t, err)

	cleanup()

	_, err = os.Stat(d.Path)
	assert.True(t, os.IsNotExist(err), "artifact should be removed by cleanup")
}

func TestPreprocessMissingFile(t *testing.T) {
	p := NewPreprocessor(Config{})

	_, _, err := p.Preprocess(context.Background(), filepath.Join(t.TempDir(), "nope.png"), []Step{StepDenoise})

	assert.Error(t, err)
}

func TestCompressForVisionDownscales(t *testing.T) {
	src := writePNG(t, uniformGray(300, 200, 128))

	data, mime, err := CompressForVision(src, 150, 85)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", mime)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 150, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestCompressForVisionSmallImageKeepsSize(t *testing.T) {
	src := writePNG(t, uniformGray(80, 60, 128))

	data, _, err := CompressForVision(src, 1024, 0)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestPreprocessCreatesMissingCacheDir(t *testing.T) {
	src := writePNG(t, uniformGray(64, 64, 200))
	cacheDir := filepath.Join(t.TempDir(), "artifacts", "cache")
	p := NewPreprocessor(Config{ArtifactCacheDir: cacheDir})

	d, cleanup, err := p.Preprocess(context.Background(), src, []Step{StepEnhanceContrast})
	require.NoError(t, err, "a not-yet-existing cache dir should be created, not fail the run")
	defer cleanup()

	assert.Equal(t, cacheDir, filepath.Dir(filepath.Dir(d.Path)), "artifact should live under the cache dir")
	_, err = os.Stat(d.Path)
	assert.NoError(t, err)
}
