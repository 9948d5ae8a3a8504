package ocr

import "strings"

var shortToTesseract = map[string]string{
	"en": "eng",
	"lt": "lit",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pl": "pol",
	"ru": "rus",
	"lv": "lav",
	"et": "est",
	"pt": "por",
	"nl": "nld",
}

// TesseractLangs maps a "+"-joined short-code hint ("en+lt") to tesseract codes ("eng+lit").
// Unknown codes pass through unchanged; an empty hint yields "eng".
func TesseractLangs(hint string) string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(hint, "+") {
		code := strings.ToLower(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if mapped, ok := shortToTesseract[code]; ok {
			code = mapped
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if len(out) == 0 {
		return "eng"
	}
	return strings.Join(out, "+")
}
