package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docparse/internal/entity"
)

var reKeyJunk = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey lower-cases a key and collapses anything that is not a letter or digit into '_'.
func NormalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = reKeyJunk.ReplaceAllString(k, "_")
	return strings.Trim(k, "_")
}

// NormalizeFields turns a model-produced field map into entity.Fields.
//   - keys become snake_case; document_type is dropped
//   - strings are trimmed; "" and "null" become null
//   - numbers and booleans are formatted; nested values become compact JSON
//
// When two raw keys normalize to the same key, a non-null value wins over null.
// It returns the normalized fields and a list of what was dropped or rewritten.
func NormalizeFields(raw map[string]any, logger *slog.Logger) (entity.Fields, []string) {
	if logger == nil {
		logger = slog.Default()
	}

	out := make(entity.Fields, len(raw))
	dropped := make([]string, 0, 4)

	for _, k := range slices.Sorted(maps.Keys(raw)) {
		key := NormalizeKey(k)
		switch {
		case key == "":
			dropped = append(dropped, fmt.Sprintf("%q(empty key)", k))
			continue
		case key == "document_type":
			dropped = append(dropped, k+"(reserved)")
			continue
		case key != k:
			dropped = append(dropped, k+"->"+key)
		}

		val := normalizeValue(raw[k])
		if prev, exists := out[key]; exists && (prev != nil || val == nil) {
			dropped = append(dropped, k+"(duplicate)")
			continue
		}
		out[key] = val
	}

	if len(dropped) > 0 {
		logger.Debug("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped
}

func normalizeValue(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case json.Number:
		s := t.String()
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}
