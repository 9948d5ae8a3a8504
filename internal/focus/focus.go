// Package focus builds bounded, category-targeted excerpts of OCR text for small local models.
package focus

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/docparse/constants"
)

const (
	// MaxChars bounds every focused excerpt, counted in runes.
	MaxChars = 9000
	// Delimiter separates the header block from the anchored block.
	Delimiter = "\n\n----\n\n"

	emailLines    = 120
	headerLines   = 70
	invoiceWindow = 120
	receiptWindow = 100
	newsLines     = 250
)

var (
	invoiceAnchors = []string{"summary", "total", "gross worth", "vat"}
	receiptAnchors = []string{"total", "sum", "amount", "paid", "cash", "card"}
)

// Focus returns the excerpt of text worth sending to the model for category.
// It is a pure function; unknown categories are treated like news.
func Focus(text string, category constants.Category) string {
	lines := NonBlankLines(text)
	if len(lines) == 0 {
		return ""
	}

	var out string
	switch category {
	case constants.Email:
		out = strings.Join(head(lines, emailLines), "\n")
	case constants.Invoice:
		out = headerAndBlock(lines, invoiceAnchors, invoiceWindow)
	case constants.Receipt:
		out = headerAndBlock(lines, receiptAnchors, receiptWindow)
	default:
		out = strings.Join(head(lines, newsLines), "\n")
	}
	return Truncate(out, MaxChars)
}

// headerAndBlock joins the top lines with the block starting at the first anchor line,
// or with the tail of the document when no anchor exists.
func headerAndBlock(lines []string, anchors []string, window int) string {
	top := head(lines, headerLines)

	var block []string
	if i := findAnchor(lines, anchors); i >= 0 {
		block = head(lines[i:], window)
	} else {
		block = tail(lines, window)
	}
	return strings.Join(top, "\n") + Delimiter + strings.Join(block, "\n")
}

func findAnchor(lines []string, anchors []string) int {
	for i, ln := range lines {
		low := strings.ToLower(ln)
		for _, a := range anchors {
			if strings.Contains(low, a) {
				return i
			}
		}
	}
	return -1
}

// NonBlankLines splits text into right-trimmed lines, dropping blank ones.
func NonBlankLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		ln = strings.TrimRight(ln, " \t\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		out = append(out, ln)
	}
	return out
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func head(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[:n]
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
