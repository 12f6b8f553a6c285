package imaging

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// stripes draws dark text-line-like bands sloped at angleDeg.
func stripes(w, h int, angleDeg float64) *image.Gray {
	img := uniformGray(w, h, 0xff)
	t := math.Tan(angleDeg * math.Pi / 180)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			band := int(math.Round(float64(y)-float64(x)*t)) % 20
			if band < 0 {
				band += 20
			}
			if band < 4 {
				img.Pix[y*img.Stride+x] = 0
			}
		}
	}
	return img
}

func TestEqualizeHistogramSpreadsLevels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		if i < 50 {
			img.Pix[i] = 100
		} else {
			img.Pix[i] = 150
		}
	}

	out := equalizeHistogram(img)

	assert.Equal(t, uint8(0), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[99])
}

func TestEqualizeHistogramFlatImageUnchanged(t *testing.T) {
	img := uniformGray(8, 8, 42)
	out := equalizeHistogram(img)
	assert.Equal(t, uint8(42), out.Pix[0])
}

func TestMedianFilterRemovesSaltNoise(t *testing.T) {
	img := uniformGray(20, 20, 200)
	img.Pix[10*img.Stride+10] = 0

	out := medianFilter(img, 3)

	assert.Equal(t, uint8(200), out.Pix[10*out.Stride+10])
}

func TestUnsharpMaskKeepsFlatRegionsFlat(t *testing.T) {
	img := uniformGray(16, 16, 128)
	out := unsharpMask(img)
	assert.Equal(t, uint8(128), out.Pix[8*out.Stride+8])
}

func TestUpscaleDoublesAndPreservesAspect(t *testing.T) {
	img := uniformGray(100, 50, 128)

	out, capped := upscale(img, 2.0, maxUpscaleDim)

	assert.False(t, capped)
	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
}

func TestUpscaleCapsLongestEdge(t *testing.T) {
	img := uniformGray(100, 50, 128)

	out, capped := upscale(img, 2.0, 120)

	assert.True(t, capped)
	assert.Equal(t, 120, out.Bounds().Dx())
	assert.Equal(t, 60, out.Bounds().Dy())
}

func TestUpscaleAtCapReturnsOriginal(t *testing.T) {
	img := uniformGray(200, 100, 128)

	out, capped := upscale(img, 2.0, 150)

	assert.True(t, capped)
	assert.Same(t, img, out)
}

func TestEstimateSkewFindsSlopedLines(t *testing.T) {
	img := stripes(200, 200, 3.0)

	angle, ok := estimateSkew(img)

	require.True(t, ok)
	assert.InDelta(t, 3.0, angle, 0.5)
}

func TestEstimateSkewLevelImageNotReliable(t *testing.T) {
	img := stripes(200, 200, 0)

	_, ok := estimateSkew(img)

	assert.False(t, ok)
}

func TestEstimateSkewBlankImageNotReliable(t *testing.T) {
	img := uniformGray(200, 200, 0xff)

	_, ok := estimateSkew(img)

	assert.False(t, ok)
}

func TestRotateKeepsDimensionsAndFillsCorners(t *testing.T) {
	img := uniformGray(64, 64, 0)

	out := rotate(img, 10)

	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 64, out.Bounds().Dy())
	assert.Equal(t, uint8(0xff), out.Pix[0], "corner outside the rotated source should stay white")
}
