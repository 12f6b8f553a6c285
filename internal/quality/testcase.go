package quality

import (
	"github.com/partlens/partlens/internal/common"
)

// TestCase is one labeled corpus entry: an image plus the ground truth the
// pipeline is expected to recover from it. Read-only during a validation run.
type TestCase struct {
	ID                    string   `json:"id"`
	ImageRef              string   `json:"image_ref"`
	ExpectedTextFragments []string `json:"expected_text_fragments"`
	ExpectedObjects       []string `json:"expected_objects"`
	MinConfidence         float64  `json:"min_confidence"`
	Category              string   `json:"category"`
	Description           string   `json:"description,omitempty"`
}

func (tc TestCase) Validate() error {
	return common.NewValidator().
		Field("id", tc.ID, common.Required, common.UUID).
		Field("image_ref", tc.ImageRef, common.Required).
		Field("category", tc.Category, common.Required).
		Field("min_confidence", tc.MinConfidence, common.UnitInterval).
		Error()
}
