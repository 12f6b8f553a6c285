package pipeline

import (
	"strings"

	"github.com/partlens/partlens/internal/ocr"
	"github.com/partlens/partlens/internal/vision"
)

// QualityScores summarizes per-path signal strength for one processed image.
// It is diagnostic only and never feeds back into merging.
type QualityScores struct {
	OCRConfidence    float64 `json:"ocr_confidence"`
	OCRTextLength    int     `json:"ocr_text_length"`
	OCRAttempts      int     `json:"ocr_attempts"`
	VisionConfidence float64 `json:"vision_confidence"`
	VisionTextLength int     `json:"vision_text_length"`
	VisionObjects    int     `json:"vision_objects"`
	FinalConfidence  float64 `json:"final_confidence"`
	FinalTextLength  int     `json:"final_text_length"`
	TextOverlap      float64 `json:"text_overlap"`
}

func computeQualityScores(best *ocr.ExtractionResult, vis *vision.Result, merged Merged, attempts int) QualityScores {
	q := QualityScores{
		OCRAttempts:     attempts,
		FinalConfidence: merged.Confidence,
		FinalTextLength: len(merged.Text),
	}
	var ocrText, visText string
	if best != nil {
		q.OCRConfidence = best.Confidence
		q.OCRTextLength = len(best.Text)
		ocrText = best.Text
	}
	if vis != nil {
		q.VisionConfidence = vis.Confidence
		q.VisionTextLength = len(vis.ExtractedText)
		q.VisionObjects = len(vis.DetectedObjects)
		visText = vis.ExtractedText
	}
	if ocrText != "" && visText != "" {
		q.TextOverlap = wordOverlap(ocrText, visText)
	}
	return q
}

// wordOverlap is the Jaccard similarity of the two texts' word sets. Only
// words longer than two characters count, so articles and stray OCR
// fragments do not inflate agreement.
func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}
