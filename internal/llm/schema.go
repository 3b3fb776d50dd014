package llm

// BuildIntentSchema returns a JSON-Schema (draft 2020-12 subset) constraining
// an intent classification response to a single key over the given taxonomy.
// Used to validate model output locally before trusting the label.
func BuildIntentSchema(taxonomy []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": taxonomy,
			},
		},
		"required": []string{"intent"},
	}
}

// BuildEmailFieldsSchema constrains the types of the email extraction
// fields without requiring any of them: models legitimately omit keys,
// but a key of the wrong shape means the response is off contract.
func BuildEmailFieldsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sender":  map[string]any{"type": "string"},
			"intent":  map[string]any{"type": "string"},
			"urgency": map[string]any{"type": "string"},
			"topics":  map[string]any{"type": "array"},
			"summary": map[string]any{"type": "string"},
		},
	}
}

// BuildExtractionSchema constrains a JSON extraction response:
// extracted_data must be an object and anomalies an array when present.
func BuildExtractionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent":         map[string]any{"type": "string"},
			"extracted_data": map[string]any{"type": "object"},
			"anomalies":      map[string]any{"type": "array"},
		},
	}
}
