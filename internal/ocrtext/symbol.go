package ocrtext

import "regexp"

// Labels that introduce a variable symbol or invoice number, matched against
// folded text. Labels are more consistent than date keywords, so a single
// first-match pass is enough here.
var symbolLabelRe = regexp.MustCompile(
	`(?:variabilni\s*symbol|var\.?\s*symbol|vs[.:]|cislo\s*faktury|faktura\s*(?:c|cislo)[.:]?|invoice\s*(?:no|number|num|#)\.?)\s*:?\s*#?\s*([0-9]{4,})`)

// Fallback: the first freestanding long digit run is a best-effort invoice
// number guess.
var freeDigitsRe = regexp.MustCompile(`\b([0-9]{8,})\b`)

// ExtractSymbol finds the invoice number / variable symbol.
func ExtractSymbol(text string) (string, bool) {
	normalized := normalizeForMatch(text)

	if m := symbolLabelRe.FindStringSubmatch(normalized); m != nil {
		return m[1], true
	}
	if m := freeDigitsRe.FindStringSubmatch(normalized); m != nil {
		return m[1], true
	}
	return "", false
}
