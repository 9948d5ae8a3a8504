package extract

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/entity"
	"github.com/joseph-ayodele/docparse/internal/focus"
)

// ContentMaxChars bounds the news content field, in runes.
const ContentMaxChars = 8000

var requiredKeys = map[constants.Category][]string{
	constants.Email:   {"from", "to", "cc", "subject", "date"},
	constants.Invoice: {"invoice_number", "date", "seller", "buyer", "total_amount", "vat_amount", "currency"},
	constants.Receipt: {"store", "date", "total", "currency", "payment_method"},
	constants.News:    {"title", "author", "content"},
}

// RequiredKeys lists the keys always present in a category's fields, null when unknown.
func RequiredKeys(category constants.Category) []string {
	keys, ok := requiredKeys[category]
	if !ok {
		keys = requiredKeys[constants.News]
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// amount is a decimal with two fraction digits and optional thousands separators.
const amount = `(?:\d{1,3}(?:[,.]\d{3})+|\d+)[.,]\d{2}`

const currencyCode = `\b(?:eur|usd|gbp)\b`

// money captures an amount with an optional leading or trailing currency marker. The amount
// must not run on into more digits, so "1,234" or "12.345" never yield a truncated value.
const money = `((?:[$€£]|` + currencyCode + `)?[ \t]*` + amount + `(?:[ \t]*(?:` + currencyCode + `|[$€£]))?)(?:\D|$)`

var (
	reEmailFrom    = regexp.MustCompile(`(?im)^[ \t]*from:[ \t]*(.+)$`)
	reEmailTo      = regexp.MustCompile(`(?im)^[ \t]*to:[ \t]*(.+)$`)
	reEmailCc      = regexp.MustCompile(`(?im)^[ \t]*cc:[ \t]*(.+)$`)
	reEmailSubject = regexp.MustCompile(`(?im)^[ \t]*subject:[ \t]*(.+)$`)
	reEmailDate    = regexp.MustCompile(`(?im)^[ \t]*date:[ \t]*(.+)$`)

	reInvoiceNo       = regexp.MustCompile(`(?i)invoice[ \t]*(?:no\b\.?|number|#)[ \t]*[:\-]?[ \t]*([A-Z0-9][A-Z0-9\-/]*)`)
	reBareNo          = regexp.MustCompile(`(?i)\bno\b\.?[ \t]*[:\-]?[ \t]*([A-Z0-9\-]{4,})`)
	reInvToken        = regexp.MustCompile(`\b(INV[\- ]?[A-Z]{0,3}[0-9][0-9A-Z\-]*)\b`)
	reLabeledISODate  = regexp.MustCompile(`(?i)\bdate(?:[ \t]+of[ \t]+issue)?[ \t]*[:\-]?[ \t]*(\d{4}[\-/.]\d{2}[\-/.]\d{2})`)
	reLabeledDMYDate  = regexp.MustCompile(`(?i)\bdate(?:[ \t]+of[ \t]+issue)?[ \t]*[:\-]?[ \t]*(\d{2}[./\-]\d{2}[./\-]\d{4})`)
	reISODate         = regexp.MustCompile(`(\d{4}[\-/.]\d{2}[\-/.]\d{2})`)
	reDMYDate         = regexp.MustCompile(`(\d{2}[./\-]\d{2}[./\-]\d{4})`)
	reSeller          = regexp.MustCompile(`(?im)^[ \t]*(?:seller|from)\b[ \t]*[:\-]?[ \t]*\n?[ \t]*([^\s:\-].*)$`)
	reBuyer           = regexp.MustCompile(`(?im)^[ \t]*(?:client|bill[ \t]*to|buyer|to)\b[ \t]*[:\-]?[ \t]*\n?[ \t]*([^\s:\-].*)$`)
	reTotal           = regexp.MustCompile(`(?i)\btotal\b[^\n$€£]{0,24}?` + money)
	reVAT             = regexp.MustCompile(`(?i)\bvat\b[^\n$€£]{0,24}?` + money)
	reCurrencyCode    = regexp.MustCompile(`(?i)\b(EUR|USD|GBP)\b`)
	reCurrencySymbol  = regexp.MustCompile(`([$€£])`)
	rePaymentMethod   = regexp.MustCompile(`(?i)\b(cash|card|visa|mastercard)\b`)
	reNewsAuthor      = regexp.MustCompile(`(?i)^by\s+(.+)$`)
)

// newsAuthorHorizon is how many leading lines are searched for a byline.
const newsAuthorHorizon = 10

// Rules runs the category's regex extractor. It never fails: every required key is present.
func Rules(text string, category constants.Category) entity.Fields {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var f entity.Fields
	switch category {
	case constants.Email:
		f = emailFields(text)
	case constants.Invoice:
		f = invoiceFields(text)
	case constants.Receipt:
		f = receiptFields(text)
	default:
		f = newsFields(text)
	}
	f.EnsureKeys(RequiredKeys(category)...)
	return f
}

func emailFields(t string) entity.Fields {
	return entity.Fields{
		"from":    grab(t, reEmailFrom),
		"to":      grab(t, reEmailTo),
		"cc":      grab(t, reEmailCc),
		"subject": grab(t, reEmailSubject),
		"date":    grab(t, reEmailDate),
	}
}

func invoiceFields(t string) entity.Fields {
	return entity.Fields{
		"invoice_number": grab(t, reInvoiceNo, reBareNo, reInvToken),
		"date":           grab(t, reLabeledISODate, reLabeledDMYDate, reISODate, reDMYDate),
		"seller":         grab(t, reSeller),
		"buyer":          grab(t, reBuyer),
		"total_amount":   grab(t, reTotal),
		"vat_amount":     grab(t, reVAT),
		"currency":       currency(t),
	}
}

func receiptFields(t string) entity.Fields {
	var store *string
	if lines := focus.NonBlankLines(t); len(lines) > 0 {
		store = entity.Str(strings.TrimSpace(lines[0]))
	}
	f := entity.Fields{
		"store":          store,
		"date":           grab(t, reISODate, reDMYDate),
		"total":          grab(t, reTotal),
		"currency":       currency(t),
		"payment_method": grab(t, rePaymentMethod),
	}
	if v := f["payment_method"]; v != nil {
		f["payment_method"] = entity.Str(strings.ToLower(*v))
	}
	return f
}

func newsFields(text string) entity.Fields {
	t := strings.TrimSpace(text)
	lines := focus.NonBlankLines(t)

	f := entity.Fields{"title": nil, "author": nil, "content": nil}
	if len(lines) > 0 {
		f["title"] = entity.Str(strings.TrimSpace(lines[0]))
	}
	for i, ln := range lines {
		if i >= newsAuthorHorizon {
			break
		}
		if m := reNewsAuthor.FindStringSubmatch(strings.TrimSpace(ln)); m != nil {
			if a := strings.TrimSpace(m[1]); a != "" {
				f["author"] = entity.Str(a)
				break
			}
		}
	}
	if t != "" {
		f["content"] = entity.Str(focus.Truncate(t, ContentMaxChars))
	}
	return f
}

func currency(t string) *string {
	if v := grab(t, reCurrencyCode); v != nil {
		return entity.Str(strings.ToUpper(*v))
	}
	return grab(t, reCurrencySymbol)
}

// grab returns the first capture of the first pattern that matches with a non-blank value.
func grab(t string, patterns ...*regexp.Regexp) *string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(t)
		if len(m) < 2 {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			return &v
		}
	}
	return nil
}
