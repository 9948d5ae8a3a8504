package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b(\d{4}[\-/.]\d{2}[\-/.]\d{2}|\d{2}[./\-]\d{2}[./\-]\d{4})\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+[.,]\d{2}\b`)
)

// Confidence is the mean word confidence when boxes carry one, else a text heuristic.
func Confidence(boxes []Box, text string) float64 {
	var sum float64
	n := 0
	for _, b := range boxes {
		if b.Conf < 0 {
			continue
		}
		sum += b.Conf
		n++
	}
	if n > 0 {
		return clamp01(sum / float64(n))
	}
	return heuristicConfidence(text)
}

// heuristicConfidence scores decoded text by how document-like it looks.
func heuristicConfidence(txt string) float64 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
