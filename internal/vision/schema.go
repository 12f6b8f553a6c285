package vision

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildExtractionJSONSchema returns the response contract as a JSON-Schema
// (draft 2020-12 subset) generic map. Field names are part of the wire
// contract with the vision API prompt and must not change.
func BuildExtractionJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"extracted_text": map[string]any{"type": "string"},
			"detected_objects": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"description":      map[string]any{"type": "string"},
			"confidence":       map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"extraction_notes": map[string]any{"type": "string"},
		},
		"required": []string{"extracted_text", "confidence"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
