package llm

// ExtractionResponseSchema is the shape every extraction answer must have before its
// fields are considered: a string document_type and a non-empty fields object.
func ExtractionResponseSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"document_type", "fields"},
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string", "minLength": 1},
			"fields": map[string]any{
				"type":          "object",
				"minProperties": 1,
			},
		},
	}
}

// ClassificationResponseSchema requires only a string document_type. Confidence is
// left unconstrained; the classifier substitutes a default for bad values.
func ClassificationResponseSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"document_type"},
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string"},
		},
	}
}
