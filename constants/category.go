package constants

import (
	"fmt"
	"strings"
)

// Category is the closed set of document types the pipeline understands.
type Category string

const (
	Email   Category = "email"
	Invoice Category = "invoice"
	News    Category = "news"
	Receipt Category = "receipt"
)

var allCategories = []Category{
	Email,
	Invoice,
	News,
	Receipt,
}

// AllCategories returns the categories in their canonical order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// ParseCategory maps a label onto the closed set. Anything else is rejected.
func ParseCategory(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}
	return "", false
}

func (c Category) Valid() bool {
	for _, cat := range allCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// UnmarshalText rejects labels outside the closed set.
func (c *Category) UnmarshalText(b []byte) error {
	cat, ok := ParseCategory(string(b))
	if !ok {
		return fmt.Errorf("unknown document category %q", string(b))
	}
	*c = cat
	return nil
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c), nil
}
