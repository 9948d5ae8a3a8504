package classify

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docparse/constants"
)

// Rule is one ordered heuristic. Match receives lower-cased text.
type Rule struct {
	Name       string
	Category   constants.Category
	Confidence float64
	Match      func(low string) bool
}

var (
	reHeaderFrom    = regexp.MustCompile(`(?m)^\s*from:`)
	reHeaderTo      = regexp.MustCompile(`(?m)^\s*to:`)
	reHeaderSubject = regexp.MustCompile(`(?m)^\s*subject:`)

	reReceiptToken  = regexp.MustCompile(`\breceipt`)
	rePaymentToken  = regexp.MustCompile(`\b(?:cash|card|payment)`)
	reInvoiceNumber = regexp.MustCompile(`\binvoice\s*(?:no\b|no\.|number|#)`)
	reInvoiceToken  = regexp.MustCompile(`\binvoice`)
	reSeller        = regexp.MustCompile(`\bseller\b`)
	reBuyer         = regexp.MustCompile(`\bbuyer\b`)
	reCurrency      = regexp.MustCompile(`\b(?:eur|usd|gbp)\b|[$€£]`)
	reByline        = regexp.MustCompile(`\bby\s+\p{L}`)
)

// DefaultRules is evaluated top to bottom and the first match wins. Receipt cues precede
// invoice cues, and news is the catch-all.
var DefaultRules = []Rule{
	{
		Name: "email-headers", Category: constants.Email, Confidence: 0.65,
		Match: func(t string) bool {
			from := reHeaderFrom.MatchString(t)
			return (from && reHeaderTo.MatchString(t)) || (from && reHeaderSubject.MatchString(t))
		},
	},
	{
		Name: "receipt-literal", Category: constants.Receipt, Confidence: 0.70,
		Match: reReceiptToken.MatchString,
	},
	{
		Name: "receipt-total-payment", Category: constants.Receipt, Confidence: 0.60,
		Match: func(t string) bool {
			return strings.Contains(t, "total") && rePaymentToken.MatchString(t)
		},
	},
	{
		Name: "receipt-closing", Category: constants.Receipt, Confidence: 0.65,
		Match: func(t string) bool {
			return (strings.Contains(t, "thank you") || strings.Contains(t, "come again")) && strings.Contains(t, "total")
		},
	},
	{
		Name: "invoice-number", Category: constants.Invoice, Confidence: 0.75,
		Match: reInvoiceNumber.MatchString,
	},
	{
		Name: "invoice-parties", Category: constants.Invoice, Confidence: 0.70,
		Match: func(t string) bool {
			return strings.Contains(t, "bill to") || (reSeller.MatchString(t) && reBuyer.MatchString(t))
		},
	},
	{
		Name: "invoice-marker", Category: constants.Invoice, Confidence: 0.65,
		Match: func(t string) bool {
			return reInvoiceToken.MatchString(t) &&
				(strings.Contains(t, "date of issue") || strings.Contains(t, "due date") || reBuyer.MatchString(t))
		},
	},
	{
		Name: "money-total", Category: constants.Receipt, Confidence: 0.45,
		Match: func(t string) bool {
			return strings.Contains(t, "total") && reCurrency.MatchString(t)
		},
	},
	{
		Name: "news-byline", Category: constants.News, Confidence: 0.55,
		Match: func(t string) bool {
			return reByline.MatchString(t) && (strings.Contains(t, "published") || strings.Contains(t, "updated"))
		},
	},
	{
		Name: "news-long", Category: constants.News, Confidence: 0.45,
		Match: func(t string) bool { return len(strings.Fields(t)) > 150 },
	},
	{
		Name: "default", Category: constants.News, Confidence: 0.35,
		Match: func(string) bool { return true },
	},
}

// MatchRule returns the first rule matching text. When no rule matches (a custom list
// without a catch-all), it returns a news rule with zero confidence.
func MatchRule(rules []Rule, text string) Rule {
	low := strings.ToLower(text)
	for _, r := range rules {
		if r.Match(low) {
			return r
		}
	}
	return Rule{Name: "none", Category: constants.News, Confidence: 0}
}
