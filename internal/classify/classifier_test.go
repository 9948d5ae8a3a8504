package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/llm"
)

func replying(text string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string, llm.GenerateOptions) llm.Outcome {
		return llm.Outcome{Text: text, Status: llm.StatusOK}
	})
}

func TestRuleOrder(t *testing.T) {
	tests := []struct {
		name string
		text string
		rule string
		want constants.Category
		conf float64
	}{
		{"email from/to", "From: a@x.com\nTo: b@y.com\nSubject: Hi", "email-headers", constants.Email, 0.65},
		{"email subject/from", "Subject: lunch\n  From: boss", "email-headers", constants.Email, 0.65},
		{"receipt beats invoice", "RECEIPT\nInvoice no: 123", "receipt-literal", constants.Receipt, 0.70},
		{"total with card", "Subtotal 4.00\nPaid by CARD", "receipt-total-payment", constants.Receipt, 0.60},
		{"closing phrase", "total 3.00\nThank you, come again", "receipt-closing", constants.Receipt, 0.65},
		{"invoice number", "INVOICE NO: INV-2024-001\nTotal: 120.00 EUR", "invoice-number", constants.Invoice, 0.75},
		{"bill to", "Bill to: ACME\nAmount due", "invoice-parties", constants.Invoice, 0.70},
		{"seller and buyer", "Seller: A\nBuyer: B", "invoice-parties", constants.Invoice, 0.70},
		{"invoice marker", "Invoice\nDate of issue: 2024-01-01", "invoice-marker", constants.Invoice, 0.65},
		{"money total", "Grand total $ 12.00", "money-total", constants.Receipt, 0.45},
		{"byline", "Storm hits coast\nBy Jane Doe\nPublished 2024-01-01", "news-byline", constants.News, 0.55},
		{"long text", strings.Repeat("word ", 151), "news-long", constants.News, 0.45},
		{"default", "hello", "default", constants.News, 0.35},
		{"empty", "", "default", constants.News, 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MatchRule(DefaultRules, tt.text)
			assert.Equal(t, tt.rule, r.Name)

			res := New(nil, nil).Classify(context.Background(), tt.text, false)
			assert.Equal(t, tt.want, res.Category)
			assert.InDelta(t, tt.conf, res.Confidence, 1e-9)
			assert.Equal(t, constants.MethodRules, res.Method)
			assert.Empty(t, res.FallbackReason)
		})
	}
}

func TestEmailHeadersMustStartLines(t *testing.T) {
	r := MatchRule(DefaultRules, "Shipped from: Vilnius\nDelivered to: Kaunas")
	assert.NotEqual(t, "email-headers", r.Name)
}

func TestMatchRuleWithoutCatchAll(t *testing.T) {
	r := MatchRule([]Rule{DefaultRules[0]}, "nothing")
	assert.Equal(t, constants.News, r.Category)
	assert.Zero(t, r.Confidence)
}

func TestClassifyModel(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   constants.Category
		conf   float64
		method constants.Method
		reason constants.FallbackReason
	}{
		{"accepted", `{"document_type":"Invoice","confidence":0.91}`, constants.Invoice, 0.91, constants.MethodModel, ""},
		{"clamped high", `{"document_type":"email","confidence":7}`, constants.Email, 1, constants.MethodModel, ""},
		{"clamped low", `{"document_type":"email","confidence":-2}`, constants.Email, 0, constants.MethodModel, ""},
		{"missing confidence", `{"document_type":"news"}`, constants.News, DefaultModelConfidence, constants.MethodModel, ""},
		{"string confidence", `{"document_type":"news","confidence":"0.8"}`, constants.News, 0.8, constants.MethodModel, ""},
		{"garbage confidence", `{"document_type":"news","confidence":"high"}`, constants.News, DefaultModelConfidence, constants.MethodModel, ""},
		{"unknown label", `{"document_type":"letter","confidence":0.9}`, constants.Receipt, 0.70, constants.MethodModelFallbackToRules, constants.FallbackUnknownCategory},
		{"plural label", `{"document_type":"receipts","confidence":0.9}`, constants.Receipt, 0.70, constants.MethodModelFallbackToRules, constants.FallbackUnknownCategory},
		{"numeric label", `{"document_type":3}`, constants.Receipt, 0.70, constants.MethodModelFallbackToRules, constants.FallbackUnknownCategory},
		{"prose", `I think this is a receipt.`, constants.Receipt, 0.70, constants.MethodModelFallbackToRules, constants.FallbackUnparseable},
		{"empty", ``, constants.Receipt, 0.70, constants.MethodModelFallbackToRules, constants.FallbackUnavailable},
	}
	const text = "Receipt\nStore X\nTotal 9.99 cash"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(replying(tt.reply), nil).Classify(context.Background(), text, true)
			assert.Equal(t, tt.want, res.Category)
			assert.InDelta(t, tt.conf, res.Confidence, 1e-9)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.reason, res.FallbackReason)
		})
	}
}

func TestClassifyUnavailableMatchesRules(t *testing.T) {
	texts := []string{
		"From: a@x.com\nTo: b@y.com\nSubject: Hi",
		"INVOICE NO: INV-2024-001\nTotal: 120.00 EUR",
		"Receipt\nStore X\nTotal 9.99 cash",
		strings.Repeat("lorem ipsum ", 100),
		"",
	}
	ctx := context.Background()
	rules := New(nil, nil)
	down := New(llm.Disabled{}, nil)
	for _, text := range texts {
		want := rules.Classify(ctx, text, false)
		got := down.Classify(ctx, text, true)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Confidence, got.Confidence)
		assert.Equal(t, constants.MethodModelFallbackToRules, got.Method)
		assert.Equal(t, constants.FallbackUnavailable, got.FallbackReason)
	}
}

func TestClassifyPromptCarriesText(t *testing.T) {
	var seen string
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string, opts llm.GenerateOptions) llm.Outcome {
		seen = prompt
		assert.Zero(t, opts.Temperature)
		return llm.Outcome{Text: `{"document_type":"news","confidence":0.5}`, Status: llm.StatusOK}
	})
	New(gen, nil).Classify(context.Background(), "  Breaking story  ", true)
	assert.True(t, strings.HasSuffix(seen, "Breaking story"))
}

func TestAlwaysInClosedSet(t *testing.T) {
	inputs := []string{"", "€", "total", "from:", strings.Repeat("x\n", 1000), "\x00\xff"}
	for _, in := range inputs {
		for _, useModel := range []bool{false, true} {
			res := New(replying(`{"document_type":"spam","confidence":99}`), nil).Classify(context.Background(), in, useModel)
			assert.True(t, res.Category.Valid())
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
		}
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.1))
	assert.Equal(t, 1.0, Clamp(1.1))
	assert.Equal(t, 0.5, Clamp(0.5))
}
