package vision

import (
	"encoding/json"
	"strings"
)

// buildExtractionPrompt instructs the model to return the structured JSON
// contract. The schema is embedded so compatible endpoints without native
// structured output still see the exact shape expected.
func buildExtractionPrompt() string {
	parts := []string{
		"You are analyzing a photograph of a product for inventory cataloging.",
		"Extract ALL visible text: model numbers, serial numbers, brand names, specifications, ratings, warnings.",
		"Identify the object categories visible in the photo (e.g. battery, cable, charger, circuit_board).",
		"Return ONLY JSON that matches the JSON Schema provided.",
		"Set 'extracted_text' to the verbatim text you can read, preserving line structure where sensible.",
		"Set 'detected_objects' to short lowercase category labels.",
		"Set 'description' to one or two factual sentences about the product.",
		"Set 'confidence' between 0 and 1 reflecting how legible the text is.",
		"Use 'extraction_notes' for anything that limited the extraction (glare, blur, occlusion).",
	}
	return strings.Join(parts, " ") + "\n\nJSON Schema:\n" + mustJSON(BuildExtractionJSONSchema())
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
