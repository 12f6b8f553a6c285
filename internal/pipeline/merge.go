package pipeline

import (
	"fmt"
	"strings"

	"github.com/partlens/partlens/internal/ocr"
	"github.com/partlens/partlens/internal/vision"
)

// MergeStrategy selects how the two paths' outputs are reconciled.
type MergeStrategy string

const (
	StrategyOCROnly        MergeStrategy = "ocr_only"
	StrategyAIOnly         MergeStrategy = "ai_only"
	StrategyBestConfidence MergeStrategy = "best_confidence"
	StrategyMergeAll       MergeStrategy = "merge_all"
)

// Method tags describe which path(s) contributed to a merged result.
const (
	MethodOCR                = "ocr"
	MethodVision             = "ai_vision"
	MethodCombined           = "ocr+ai_vision"
	MethodOCRPrimary         = "ocr_primary"
	MethodVisionPrimary      = "ai_vision_primary"
	MethodLowConfidenceMerge = "low_confidence_merge"
	MethodError              = "error"
)

// MinMergedConfidence is the floor on every merged result.
const MinMergedConfidence = 0.1

// ParseMergeStrategy validates a strategy name from config.
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(s) {
	case StrategyOCROnly, StrategyAIOnly, StrategyBestConfidence, StrategyMergeAll:
		return MergeStrategy(s), nil
	case "":
		return StrategyBestConfidence, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", s)
	}
}

// Merged is the externally visible output of one merge.
type Merged struct {
	Text        string   `json:"text"`
	Description string   `json:"description"`
	Objects     []string `json:"objects"`
	Confidence  float64  `json:"confidence"` // >= MinMergedConfidence
	Method      string   `json:"method"`     // which path(s) contributed
	Strategy    string   `json:"strategy"`   // which merge rule fired
}

// mergeInput carries both settled paths into a merge function. Either side
// may be nil when its path failed, found nothing, or was disabled.
type mergeInput struct {
	ocr       *ocr.ExtractionResult // best OCR candidate
	vis       *vision.Result
	threshold float64
}

// mergeFunc implementations are pure: identical inputs produce identical
// outputs, so merge behavior is deterministic and separately testable.
type mergeFunc func(in mergeInput) Merged

var mergeFuncs = map[MergeStrategy]mergeFunc{
	StrategyOCROnly:        mergeOCROnly,
	StrategyAIOnly:         mergeAIOnly,
	StrategyBestConfidence: mergeBestConfidence,
	StrategyMergeAll:       mergeAll,
}

func merge(strategy MergeStrategy, in mergeInput) Merged {
	fn, ok := mergeFuncs[strategy]
	if !ok {
		fn = mergeBestConfidence
	}
	return fn(in)
}

// mergeBestConfidence prefers the vision result only when it both beats the
// OCR confidence and clears the threshold; the asymmetry is intentional,
// biasing toward OCR for printed label text when scores are comparable.
func mergeBestConfidence(in mergeInput) Merged {
	var ocrConf, visConf float64
	if in.ocr != nil {
		ocrConf = in.ocr.Confidence
	}
	if in.vis != nil {
		visConf = in.vis.Confidence
	}

	if in.vis != nil && visConf > ocrConf && visConf >= in.threshold {
		return Merged{
			Text:        in.vis.ExtractedText,
			Description: in.vis.Description,
			Objects:     dedupe(in.vis.DetectedObjects),
			Confidence:  floorConf(visConf),
			Method:      MethodVisionPrimary,
			Strategy:    string(StrategyBestConfidence),
		}
	}
	if in.ocr != nil && ocrConf >= in.threshold {
		return Merged{
			Text:        in.ocr.Text,
			Description: fmt.Sprintf("OCR extraction (%s): %s", in.ocr.Method, in.ocr.Text),
			Objects:     DetectObjects(in.ocr.Text),
			Confidence:  floorConf(ocrConf),
			Method:      MethodOCRPrimary,
			Strategy:    string(StrategyBestConfidence),
		}
	}

	// neither path is confident enough on its own
	m := comprehensiveMerge(in)
	m.Method = MethodLowConfidenceMerge
	m.Strategy = string(StrategyBestConfidence)
	return m
}

// mergeAll always combines whatever both paths produced.
func mergeAll(in mergeInput) Merged {
	m := comprehensiveMerge(in)
	m.Strategy = string(StrategyMergeAll)
	return m
}

// comprehensiveMerge concatenates the per-path texts, unions their object
// sets, and averages the confidences of the sides that are present.
func comprehensiveMerge(in mergeInput) Merged {
	var ocrText, visText string
	if in.ocr != nil {
		ocrText = in.ocr.Text
	}
	if in.vis != nil {
		visText = in.vis.ExtractedText
	}

	var parts []string
	var objects []string
	if ocrText != "" {
		parts = append(parts, fmt.Sprintf("OCR (%s): %s", in.ocr.Method, ocrText))
		objects = append(objects, DetectObjects(ocrText)...)
	}
	if visText != "" {
		parts = append(parts, "AI Vision: "+visText)
	}
	if in.vis != nil {
		objects = append(objects, in.vis.DetectedObjects...)
	}

	desc := ""
	switch {
	case in.vis != nil && in.vis.Description != "":
		desc = in.vis.Description
		if ocrText != "" && !strings.Contains(desc, ocrText) {
			desc = desc + "\nOCR text: " + ocrText
		}
	case ocrText != "":
		desc = fmt.Sprintf("OCR extraction (%s): %s", in.ocr.Method, ocrText)
	}

	var confs []float64
	if in.ocr != nil {
		confs = append(confs, in.ocr.Confidence)
	}
	if in.vis != nil {
		confs = append(confs, in.vis.Confidence)
	}
	conf := 0.0
	for _, c := range confs {
		conf += c
	}
	if len(confs) > 0 {
		conf /= float64(len(confs))
	}

	return Merged{
		Text:        strings.Join(parts, "\n\n"),
		Description: desc,
		Objects:     dedupe(objects),
		Confidence:  floorConf(conf),
		Method:      contributorTag(ocrText != "", in.vis != nil),
		Strategy:    string(StrategyMergeAll),
	}
}

// mergeOCROnly ignores the vision side entirely. With no OCR candidate it
// produces a minimal placeholder rather than an error.
func mergeOCROnly(in mergeInput) Merged {
	if in.ocr == nil {
		return Merged{
			Description: "no OCR results",
			Confidence:  MinMergedConfidence,
			Method:      MethodOCR,
			Strategy:    string(StrategyOCROnly),
		}
	}
	return Merged{
		Text:        in.ocr.Text,
		Description: fmt.Sprintf("OCR extraction (%s): %s", in.ocr.Method, in.ocr.Text),
		Objects:     DetectObjects(in.ocr.Text),
		Confidence:  floorConf(in.ocr.Confidence),
		Method:      MethodOCR,
		Strategy:    string(StrategyOCROnly),
	}
}

// mergeAIOnly is the symmetric bypass for the vision side.
func mergeAIOnly(in mergeInput) Merged {
	if in.vis == nil {
		return Merged{
			Description: "no AI vision results",
			Confidence:  MinMergedConfidence,
			Method:      MethodVision,
			Strategy:    string(StrategyAIOnly),
		}
	}
	return Merged{
		Text:        in.vis.ExtractedText,
		Description: in.vis.Description,
		Objects:     dedupe(in.vis.DetectedObjects),
		Confidence:  floorConf(in.vis.Confidence),
		Method:      MethodVision,
		Strategy:    string(StrategyAIOnly),
	}
}

func contributorTag(hasOCR, hasVision bool) string {
	switch {
	case hasOCR && hasVision:
		return MethodCombined
	case hasVision:
		return MethodVision
	case hasOCR:
		return MethodOCR
	default:
		return MethodError
	}
}

func floorConf(v float64) float64 {
	if v < MinMergedConfidence {
		return MinMergedConfidence
	}
	return v
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
