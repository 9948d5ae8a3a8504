package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Parsed is a JSON object recovered from free-form model output.
type Parsed struct {
	Object   map[string]any
	Repaired bool // trailing commas had to be stripped
}

// ParseObject takes the span from the first '{' to the last '}' and decodes it as a JSON object,
// retrying once with trailing commas removed. It never panics.
func ParseObject(raw string) (Parsed, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Parsed{}, false
	}
	chunk := raw[start : end+1]

	if obj, ok := decodeObject(chunk); ok {
		return Parsed{Object: obj}, true
	}
	repaired := reTrailingComma.ReplaceAllString(chunk, "$1")
	if repaired == chunk {
		return Parsed{}, false
	}
	if obj, ok := decodeObject(repaired); ok {
		return Parsed{Object: obj, Repaired: true}, true
	}
	return Parsed{}, false
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
