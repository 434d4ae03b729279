package ocrtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountLabeled(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"czech decimal comma", "Celkem k úhradě: 18 400,40 Kč", 18400.40},
		{"english thousands comma", "Total: 18,400.40 CZK", 18400.40},
		{"dots only thousands", "Celkem: 1.234.567 Kč", 1234567},
		{"plain integer", "K úhradě 500 Kč", 500},
		{"label without currency", "Cena celkem: 999,90", 999.90},
		{"label priority over bare total", "Celkem k úhradě: 100 Kč Total: 999 Kč", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.text)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestParseAmountCurrencyFallback(t *testing.T) {
	// No labeled total; the largest currency-marked number wins.
	text := "záloha 1 000 Kč, doplatek 2 500 Kč"
	got, ok := ParseAmount(text)
	require.True(t, ok)
	assert.InDelta(t, 2500, got, 0.001)
}

func TestParseAmountNotFound(t *testing.T) {
	tests := []string{
		"",
		"žádné částky v tomto textu",
		"číslo 12345 bez měny a bez štítku",
	}
	for _, text := range tests {
		_, ok := ParseAmount(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestNormalizeNumeral(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"18 400,40", 18400.40, true},
		{"18,400.40", 18400.40, true},
		{"1.234.567", 1234567, true},
		{"1,234,567", 1234567, true},
		{"1.234.567,89", 1234567.89, true},
		{"1,234,567.89", 1234567.89, true},
		{"242", 242, true},
		{"0,5", 0.5, true},
		{"", 0, false},
		{",,", 0, false},
	}

	for _, tt := range tests {
		got, ok := normalizeNumeral(tt.in)
		require.Equal(t, tt.wantOK, ok, "input %q", tt.in)
		if tt.wantOK {
			assert.InDelta(t, tt.want, got, 0.001, "input %q", tt.in)
		}
	}
}
