package ocrtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSymbolLabeled(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"variable symbol", "Variabilní symbol: 2025001", "2025001"},
		{"abbreviated", "VS: 12345678", "12345678"},
		{"var dot symbol", "var. symbol 99887766", "99887766"},
		{"invoice number czech", "Číslo faktury: 20250042", "20250042"},
		{"invoice number english", "Invoice no. 4411", "4411"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractSymbol(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractSymbolFreeDigitsFallback(t *testing.T) {
	got, ok := ExtractSymbol("platba na účet, reference 20250012345 děkujeme")
	require.True(t, ok)
	assert.Equal(t, "20250012345", got)
}

func TestExtractSymbolLabeledBeatsFallback(t *testing.T) {
	got, ok := ExtractSymbol("objednávka 99999999 Variabilní symbol: 1234")
	require.True(t, ok)
	assert.Equal(t, "1234", got)
}

func TestExtractSymbolNotFound(t *testing.T) {
	tests := []string{
		"",
		"text bez čísel",
		"krátká čísla 123 456 789",
	}
	for _, text := range tests {
		_, ok := ExtractSymbol(text)
		assert.False(t, ok, "text %q", text)
	}
}
