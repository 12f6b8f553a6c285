package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{
			name: "partial overlap",
			a:    "Anker PowerCore 10000 portable charger",
			b:    "Anker PowerCore 10000 battery",
			// 3 shared words, 6 distinct
			want: 0.5,
		},
		{name: "identical", a: "usb cable included", b: "usb cable included", want: 1.0},
		{name: "disjoint", a: "battery pack", b: "laptop screen", want: 0.0},
		{name: "empty side", a: "", b: "battery pack", want: 0.0},
		{name: "only short words", a: "go is on", b: "go on at", want: 0.0},
		{name: "punctuation trimmed", a: "charger.", b: "(charger)", want: 1.0},
		{name: "case insensitive", a: "CHARGER", b: "charger", want: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, wordOverlap(tt.a, tt.b), 1e-9)
		})
	}
}

func TestComputeQualityScores(t *testing.T) {
	best := ocrCandidate("Anker PowerCore 10000 portable charger", "product_label", 0.80)
	vis := visionResult("Anker PowerCore 10000 battery", "A power bank", []string{"battery", "charger"}, 0.90)
	merged := Merged{Text: "Anker PowerCore 10000 battery", Confidence: 0.90}

	q := computeQualityScores(best, vis, merged, 4)

	assert.InDelta(t, 0.80, q.OCRConfidence, 1e-9)
	assert.Equal(t, len(best.Text), q.OCRTextLength)
	assert.Equal(t, 4, q.OCRAttempts)
	assert.InDelta(t, 0.90, q.VisionConfidence, 1e-9)
	assert.Equal(t, len(vis.ExtractedText), q.VisionTextLength)
	assert.Equal(t, 2, q.VisionObjects)
	assert.InDelta(t, 0.90, q.FinalConfidence, 1e-9)
	assert.Equal(t, len(merged.Text), q.FinalTextLength)
	assert.InDelta(t, 0.5, q.TextOverlap, 1e-9)
}

func TestComputeQualityScoresMissingSides(t *testing.T) {
	t.Run("no ocr", func(t *testing.T) {
		vis := visionResult("some text", "", nil, 0.7)
		q := computeQualityScores(nil, vis, Merged{Confidence: 0.7}, 0)
		assert.Zero(t, q.OCRConfidence)
		assert.Zero(t, q.OCRTextLength)
		assert.Zero(t, q.TextOverlap, "overlap needs both texts")
	})

	t.Run("no vision", func(t *testing.T) {
		best := ocrCandidate("some text", "mixed_text", 0.5)
		q := computeQualityScores(best, nil, Merged{Confidence: 0.5}, 4)
		assert.Zero(t, q.VisionConfidence)
		assert.Zero(t, q.VisionObjects)
		assert.Zero(t, q.TextOverlap)
	})
}
