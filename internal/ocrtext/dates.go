package ocrtext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	contextBeforeLen = 100
	contextAfterLen  = 50
)

// dateRe matches D.M.YYYY-shaped tokens with ./-/space separators, tolerating
// whitespace the OCR engine injects inside the token.
var dateRe = regexp.MustCompile(`\b(\d{1,2})\s*[./\-\s]\s*(\d{1,2})\s*[./\-\s]\s*(\d{4})\b`)

var weakCueRe = regexp.MustCompile(`\bdne\b`)

// DateCandidate is one date-like token found in the text together with its
// surrounding context.
type DateCandidate struct {
	Date          string // ISO YYYY-MM-DD
	Raw           string
	ContextBefore string
	ContextAfter  string
	Position      int
}

// ScanDates finds all date-like tokens in the text. Context windows are
// whitespace-collapsed so that line breaks do not defeat keyword matching.
func ScanDates(text string) []DateCandidate {
	matches := dateRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]DateCandidate, 0, len(matches))
	for _, m := range matches {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			continue
		}

		start := m[0] - contextBeforeLen
		if start < 0 {
			start = 0
		}
		end := m[1] + contextAfterLen
		if end > len(text) {
			end = len(text)
		}

		out = append(out, DateCandidate{
			Date:          fmt.Sprintf("%04d-%02d-%02d", year, month, day),
			Raw:           text[m[0]:m[1]],
			ContextBefore: collapseSpace(text[start:m[0]]),
			ContextAfter:  collapseSpace(text[m[1]:end]),
			Position:      m[0],
		})
	}
	return out
}

// Keyword is one phrase in a role's scoring table. Alias entries cover common
// OCR misreads of a base phrase and score at a fraction of the base.
type Keyword struct {
	Phrase string
	Score  float64
	Alias  bool
}

// Weights is the scoring table of the date role classifier. The magic numbers
// are historical tuning; override by passing a modified copy to
// NewRoleClassifier.
type Weights struct {
	Issue           []Keyword
	Due             []Keyword
	TaxPointPhrases []string
	AliasFactor     float64
	ProximityBonus  float64
	ProximityWindow int
	AntiPenalty     float64
	TaxPointPenalty float64
	WeakCuePenalty  float64
	OrderBonus      float64
	SameDatePenalty float64
}

// DefaultWeights returns the production scoring table.
func DefaultWeights() Weights {
	return Weights{
		Issue: []Keyword{
			{Phrase: "datum vystaveni", Score: 100},
			{Phrase: "vystaveno", Score: 80},
			{Phrase: "vystaveni", Score: 60},
			{Phrase: "date of issue", Score: 80},
			{Phrase: "issue date", Score: 80},
			// OCR misreads: m read as rn, i read as l.
			{Phrase: "daturn vystaveni", Score: 100, Alias: true},
			{Phrase: "vystavenl", Score: 60, Alias: true},
		},
		Due: []Keyword{
			{Phrase: "datum splatnosti", Score: 100},
			{Phrase: "splatnost", Score: 90},
			{Phrase: "splatne do", Score: 70},
			{Phrase: "uhradit do", Score: 70},
			{Phrase: "due date", Score: 80},
			// OCR misreads: l read as i, o read as 0.
			{Phrase: "spiatnost", Score: 90, Alias: true},
			{Phrase: "splatn0st", Score: 90, Alias: true},
		},
		TaxPointPhrases: []string{"zdanitelneho plneni", "plneni"},
		AliasFactor:     0.8,
		ProximityBonus:  0.5,
		ProximityWindow: 30,
		AntiPenalty:     30,
		TaxPointPenalty: 20,
		WeakCuePenalty:  10,
		OrderBonus:      10,
		SameDatePenalty: 15,
	}
}

// ScoredRole is the winning candidate for one role.
type ScoredRole struct {
	Candidate DateCandidate
	Score     float64
	Matched   []string
}

// RoleAssignment holds the classifier's verdict. A nil role means no
// candidate scored above zero; the classifier never guesses.
type RoleAssignment struct {
	Issue *ScoredRole
	Due   *ScoredRole
}

// RoleClassifier assigns issue-date and due-date roles to scanned date
// candidates. It is a pure function of the input text: identical text always
// yields identical assignments.
type RoleClassifier struct {
	weights Weights
}

// NewRoleClassifier creates a classifier with the given scoring table.
func NewRoleClassifier(w Weights) *RoleClassifier {
	return &RoleClassifier{weights: w}
}

// Classify scans the text for date candidates and picks the best candidate
// per role. The issue date is resolved first so the due-date scoring can
// apply its relative-order rule.
func (c *RoleClassifier) Classify(text string) RoleAssignment {
	candidates := ScanDates(text)

	issue := c.pickBest(candidates, c.weights.Issue, c.weights.Due, "")
	issueDate := ""
	if issue != nil {
		issueDate = issue.Candidate.Date
	}
	due := c.pickBest(candidates, c.weights.Due, c.weights.Issue, issueDate)

	return RoleAssignment{Issue: issue, Due: due}
}

// pickBest keeps the highest-scoring candidate with a positive score.
// Strictly-greater comparison keeps the earliest candidate on ties, which
// together with the stable scan order makes the result deterministic.
func (c *RoleClassifier) pickBest(candidates []DateCandidate, kws, anti []Keyword, issueDate string) *ScoredRole {
	var best *ScoredRole
	for _, cand := range candidates {
		score, matched := c.score(cand, kws, anti, issueDate)
		if score <= 0 {
			continue
		}
		if best == nil || score > best.Score {
			best = &ScoredRole{Candidate: cand, Score: score, Matched: matched}
		}
	}
	return best
}

func (c *RoleClassifier) score(cand DateCandidate, kws, anti []Keyword, issueDate string) (float64, []string) {
	w := c.weights

	before := normalizeForMatch(cand.ContextBefore)
	after := normalizeForMatch(cand.ContextAfter)
	context := strings.TrimSpace(before + " " + after)

	// Keywords right before the date bind tighter than ones further away.
	near := before
	if runes := []rune(before); len(runes) > w.ProximityWindow {
		near = string(runes[len(runes)-w.ProximityWindow:])
	}

	score := 0.0
	var matched []string
	for _, kw := range kws {
		phrase := normalizeForMatch(kw.Phrase)
		if !strings.Contains(context, phrase) {
			continue
		}
		s := kw.Score
		if kw.Alias {
			s *= w.AliasFactor
		}
		score += s
		if strings.Contains(near, phrase) {
			score += s * w.ProximityBonus
		}
		matched = append(matched, kw.Phrase)
	}

	for _, kw := range anti {
		if kw.Alias {
			continue
		}
		if strings.Contains(context, normalizeForMatch(kw.Phrase)) {
			score -= w.AntiPenalty
		}
	}

	// The tax point date is a third concept; its phrasing near a date makes
	// the date a worse fit for either role.
	for _, phrase := range w.TaxPointPhrases {
		if strings.Contains(context, phrase) {
			score -= w.TaxPointPenalty
			break
		}
	}

	// A bare "dne" with no stronger keyword is too weak to trust.
	if len(matched) == 0 && weakCueRe.MatchString(context) {
		score -= w.WeakCuePenalty
	}

	if issueDate != "" {
		switch {
		case cand.Date == issueDate:
			// A due date identical to the issue date is suspicious.
			score -= w.SameDatePenalty
		case cand.Date > issueDate:
			score += w.OrderBonus
		}
	}

	return score, matched
}
