package ocrtext

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// Numeral with optional embedded spaces and thousands/decimal symbols,
	// matched against whitespace-collapsed text.
	amountNumber = `([0-9](?:[0-9 .,]*[0-9])?)`
	// Currency markers after diacritic folding ("Kč" folds to "kc").
	currencyMarker = `(?:kc|czk|eur|€)`
)

// Labeled total patterns tried in order; the first match wins.
var amountLabels = []string{
	"celkem k uhrade",
	"castka k uhrade",
	"k uhrade",
	"celkem vcetne dph",
	"celkem s dph",
	"cena celkem",
	"celkem",
	"amount due",
	"total due",
	"grand total",
	"total",
	"suma",
}

var labeledAmountRes = buildLabeledAmountRes()

func buildLabeledAmountRes() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(amountLabels))
	for _, label := range amountLabels {
		res = append(res, regexp.MustCompile(label+`\s*:?\s*`+amountNumber+`(?:\s*`+currencyMarker+`)?`))
	}
	return res
}

// Fallback: any numeral immediately followed by a currency marker.
var currencyAmountRe = regexp.MustCompile(amountNumber + `\s*` + currencyMarker)

// ParseAmount finds the document total. It tries the labeled patterns first
// and falls back to the largest numeral with a currency marker. The boolean
// is false when no parseable numeral is present; an unparsable numeral is
// "not found", never zero.
func ParseAmount(text string) (float64, bool) {
	normalized := normalizeForMatch(text)

	for _, re := range labeledAmountRes {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if v, ok := normalizeNumeral(m[1]); ok {
			return v, true
		}
	}

	best := 0.0
	found := false
	for _, m := range currencyAmountRe.FindAllStringSubmatch(normalized, -1) {
		if v, ok := normalizeNumeral(m[1]); ok && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}

// normalizeNumeral resolves locale-ambiguous separators:
//   - one comma, no dot: comma is the decimal separator
//   - one dot, no comma: dot is the decimal separator
//   - both present: whichever occurs later is the decimal separator, the
//     other symbol is a thousands separator and is stripped
//   - only repeated commas or only repeated dots: all are thousands
//     separators
func normalizeNumeral(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	commas := strings.Count(cleaned, ",")
	dots := strings.Count(cleaned, ".")
	switch {
	case commas == 1 && dots == 0:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case commas > 0 && dots > 0:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = stripAllButLast(cleaned, ",")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
			cleaned = stripAllButLast(cleaned, ".")
		}
	case commas > 1:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case dots > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func stripAllButLast(s, sym string) string {
	n := strings.Count(s, sym)
	if n <= 1 {
		return s
	}
	return strings.Replace(s, sym, "", n-1)
}
