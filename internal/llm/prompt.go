package llm

import (
	"strings"

	"github.com/joseph-ayodele/docparse/constants"
)

// BuildClassificationPrompt asks for exactly one label from the closed set plus a confidence.
func BuildClassificationPrompt(text string) string {
	labels := strings.Join(constants.AsStringSlice(), ", ")

	parts := []string{
		"You are a strict document classifier.",
		"",
		"Task:",
		"1) Classify the document into exactly ONE label from: " + labels,
		"2) Return STRICT JSON only.",
		"",
		"JSON schema:",
		"{",
		`  "document_type": "` + strings.Join(constants.AsStringSlice(), "|") + `",`,
		`  "confidence": 0.0`,
		"}",
		"",
		"Document text:",
		text,
	}
	return strings.Join(parts, "\n")
}

// BuildExtractionPrompt composes the extraction request for a category: output shape,
// strict formatting rules, category hints and the focused OCR text.
func BuildExtractionPrompt(category constants.Category, focused string) string {
	dt := string(category)
	parts := []string{
		"You extract structured information from OCR text.",
		"",
		"Document type: " + dt,
		"",
		"Return STRICT JSON only. No explanations. No code fences.",
		"",
		"Output JSON format:",
		"{",
		`  "document_type": "` + dt + `",`,
		`  "fields": {`,
		`    "key1": "value1",`,
		`    "key2": null`,
		"  }",
		"}",
		"",
		"Rules (VERY IMPORTANT):",
		"- Extract ONLY information explicitly present in the OCR text. Do NOT invent data.",
		"- If a value is missing/unknown, use null.",
		"- Keys must be concise snake_case (" + strings.Join(exampleKeys(category), ", ") + ", etc.).",
		"- Prefer short values (no long paragraphs) except `content` for news.",
		"- Keep `content` max 8000 characters.",
		`- For money, keep the numeric amount and include currency if possible (e.g., "504.69 USD" or "$ 504.69").`,
		"",
		categoryHints(category),
		"",
		"OCR text:",
		focused,
	}
	return strings.Join(parts, "\n")
}

func exampleKeys(category constants.Category) []string {
	switch category {
	case constants.Email:
		return []string{"from", "to", "subject", "date"}
	case constants.Invoice:
		return []string{"invoice_number", "total_amount", "seller", "buyer"}
	case constants.Receipt:
		return []string{"store", "total", "payment_method"}
	default:
		return []string{"title", "author", "content", "summary"}
	}
}

func categoryHints(category constants.Category) string {
	var lines []string
	switch category {
	case constants.Invoice:
		lines = []string{
			"Invoice extraction hints:",
			`- invoice_number: prefer patterns like "no: 123456" or "invoice no: XYZ".`,
			`- date: prefer "date of issue:" or a nearby "date:".`,
			`- total_amount: prefer line starting with "Total" near the end (Summary).`,
			"- currency: infer from symbol ($, €, £) or currency code (USD/EUR/GBP) if present.",
			`- seller/buyer: prefer lines after "Seller:" and "Client:" (or "Bill to:").`,
		}
	case constants.Receipt:
		lines = []string{
			"Receipt extraction hints:",
			"- store: usually the first non-empty line.",
			`- total: prefer the last "Total" line; include currency if present.`,
			"- date: may appear as DD/MM/YYYY or YYYY-MM-DD.",
			"- payment_method: cash, card, visa or mastercard when visible.",
		}
	case constants.Email:
		lines = []string{
			"Email extraction hints:",
			`- from/to/cc/subject/date are typically in header lines like "From: ...".`,
		}
	default:
		lines = []string{
			"News extraction hints:",
			"- title: first line (or the largest heading if present).",
			`- author: line starting with "By ...".`,
			"- content: include up to 8000 chars.",
			"- summary: optional 1-2 sentences.",
		}
	}
	return strings.Join(lines, "\n")
}
