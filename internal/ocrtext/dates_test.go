package ocrtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDatesNormalization(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"dotted", "vystaveno 01.03.2025 v Praze", []string{"2025-03-01"}},
		{"dashed", "due 15-03-2025", []string{"2025-03-15"}},
		{"slashed", "date 5/9/2024", []string{"2024-09-05"}},
		{"embedded whitespace", "datum 01. 03. 2025 konec", []string{"2025-03-01"}},
		{"space separated", "dne 15 03 2025", []string{"2025-03-15"}},
		{"multiple", "01.01.2024 a 31.12.2024", []string{"2024-01-01", "2024-12-31"}},
		{"invalid month skipped", "13.13.2025", nil},
		{"invalid day skipped", "32.01.2025", nil},
		{"none", "no dates here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := ScanDates(tt.text)
			var got []string
			for _, c := range candidates {
				got = append(got, c.Date)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanDatesContextWindows(t *testing.T) {
	text := "Datum vystavení:\n01.03.2025 je uvedeno výše"
	candidates := ScanDates(text)
	require.Len(t, candidates, 1)

	// Context is whitespace-collapsed so the line break cannot defeat
	// keyword matching.
	assert.Equal(t, "Datum vystavení:", candidates[0].ContextBefore)
	assert.Equal(t, "je uvedeno výše", candidates[0].ContextAfter)
	assert.Equal(t, "01.03.2025", candidates[0].Raw)
}

func TestClassifyIssueAndDueDate(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())

	text := "Faktura 2025001\nDatum vystavení: 01.03.2025\nSplatnost: 15.03.2025\nCelkem: 500 Kč"
	got := c.Classify(text)

	require.NotNil(t, got.Issue)
	require.NotNil(t, got.Due)
	assert.Equal(t, "2025-03-01", got.Issue.Candidate.Date)
	assert.Equal(t, "2025-03-15", got.Due.Candidate.Date)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())
	text := "Vystaveno 02.05.2025, splatnost 16.05.2025, zdanitelné plnění 02.05.2025"

	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		again := c.Classify(text)
		assert.Equal(t, first, again)
	}
}

func TestClassifyRelativeOrderRule(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())

	// The due-date keyword sits near the later date; the earlier date is
	// labeled as the issue date. The due role must never land on the
	// earlier date.
	text := "Datum vystavení: 01.02.2025 dodávka zboží\nDatum splatnosti: 28.02.2025"
	got := c.Classify(text)

	require.NotNil(t, got.Issue)
	assert.Equal(t, "2025-02-01", got.Issue.Candidate.Date)
	require.NotNil(t, got.Due)
	assert.Equal(t, "2025-02-28", got.Due.Candidate.Date)
}

func TestClassifyNoKeywordsMeansNoRoles(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())

	got := c.Classify("nějaký text s datem 01.03.2025 bez klíčových slov")
	assert.Nil(t, got.Issue)
	assert.Nil(t, got.Due)
}

func TestClassifyWeakCueAlone(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())

	// A bare "dne" is a penalty, not a signal; it must not resolve a role.
	got := c.Classify("V Brně dne 01.03.2025")
	assert.Nil(t, got.Issue)
	assert.Nil(t, got.Due)
}

func TestClassifyTaxPointPenalty(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())

	// The tax point date carries issue-like phrasing nearby but must lose
	// to the plainly labeled issue date.
	text := "Datum vystavení: 05.03.2025\nDatum zdanitelného plnění: 01.03.2025 vystavení"
	got := c.Classify(text)

	require.NotNil(t, got.Issue)
	assert.Equal(t, "2025-03-05", got.Issue.Candidate.Date)
}

func TestClassifyAliasScoresBelowBase(t *testing.T) {
	c := NewRoleClassifier(DefaultWeights())

	base := c.Classify("splatnost: 15.03.2025")
	alias := c.Classify("spiatnost: 15.03.2025")

	require.NotNil(t, base.Due)
	require.NotNil(t, alias.Due)
	assert.Equal(t, base.Due.Candidate.Date, alias.Due.Candidate.Date)
	assert.Less(t, alias.Due.Score, base.Due.Score)
}

func TestClassifySameDateSuspicious(t *testing.T) {
	w := DefaultWeights()
	c := NewRoleClassifier(w)

	same := c.Classify("Datum vystavení: 01.03.2025 Splatnost: 01.03.2025")
	later := c.Classify("Datum vystavení: 01.03.2025 Splatnost: 15.03.2025")

	require.NotNil(t, same.Due)
	require.NotNil(t, later.Due)
	assert.Less(t, same.Due.Score, later.Due.Score)
}
