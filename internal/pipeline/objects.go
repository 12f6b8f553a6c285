package pipeline

import "github.com/partlens/partlens/constants"

// DetectObjects derives object labels from raw text by keyword matching.
// Every non-empty extraction is assumed to describe some product, so the
// generic "product" label is always present and always first.
func DetectObjects(text string) []string {
	labels := make([]constants.ObjectLabel, 0, 4)
	labels = append(labels, constants.ObjectProduct)
	labels = append(labels, constants.MatchObjects(text)...)
	return dedupe(constants.ObjectsAsStrings(labels))
}
