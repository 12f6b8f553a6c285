package ocr

import (
	"regexp"
	"unicode"
)

// Confidence bounds for heuristic scores. The heuristic never claims
// certainty in either direction.
const (
	MinConfidence = 0.10
	MaxConfidence = 0.95
)

var (
	reAlphaNum = regexp.MustCompile(`[A-Za-z0-9]`)
	reDigit    = regexp.MustCompile(`[0-9]`)
	reUpper    = regexp.MustCompile(`[A-Z]`)
	reLower    = regexp.MustCompile(`[a-z]`)
	reDigitRun = regexp.MustCompile(`\d{8,}`)
)

// Confidence scores extracted text from its shape alone. Longer output with
// a healthy mix of letters and digits scores higher; symbol soup and
// whitespace fragmentation score lower. Strategy-specific bonuses reward
// text that looks like what the strategy was tuned for.
func Confidence(text, strategy string) float64 {
	if text == "" {
		return MinConfidence
	}

	score := 0.5

	n := len(text)
	if n > 10 {
		score += 0.1
	}
	if n > 30 {
		score += 0.1
	}
	if n > 100 {
		score += 0.1
	}

	if reAlphaNum.MatchString(text) {
		score += 0.1
	}
	if reDigit.MatchString(text) {
		score += 0.1
	}
	if reUpper.MatchString(text) {
		score += 0.05
	}

	switch strategy {
	case StrategyBarcodeSerial:
		// long digit runs are what this strategy exists to find
		if reDigitRun.MatchString(text) {
			score += 0.2
		}
	case StrategyProductLabel:
		if reUpper.MatchString(text) && reLower.MatchString(text) && reDigit.MatchString(text) {
			score += 0.15
		}
	}

	var symbols, whitespace, total int
	for _, r := range text {
		total++
		switch {
		case unicode.IsSpace(r):
			whitespace++
		case !isWordRune(r):
			symbols++
		}
	}
	if total > 0 {
		if float64(symbols)/float64(total) > 0.3 {
			score -= 0.2
		}
		if float64(whitespace)/float64(total) > 0.7 {
			score -= 0.15
		}
	}

	if score < MinConfidence {
		score = MinConfidence
	}
	if score > MaxConfidence {
		score = MaxConfidence
	}
	return score
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
