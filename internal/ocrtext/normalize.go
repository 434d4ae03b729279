// Package ocrtext extracts invoice fields from noisy OCR output. All keyword
// matching runs on lowercased, diacritic-folded, whitespace-collapsed text
// because the recognizer routinely drops hacky and carky and breaks lines in
// the middle of a label.
package ocrtext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics so that "daňový doklad" and its OCR rendering
// "danovy doklad" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeForMatch(s string) string {
	return collapseSpace(strings.ToLower(Fold(s)))
}
