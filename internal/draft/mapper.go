package draft

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dokladio/invoice-extract/internal/isdoc"
	"github.com/dokladio/invoice-extract/internal/ocrtext"
	"github.com/dokladio/invoice-extract/internal/transcribe"
)

// Mapper builds canonical drafts. The clock is injectable for tests.
type Mapper struct {
	now func() time.Time
}

// NewMapper creates a mapper using the wall clock.
func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// NewMapperWithClock creates a mapper with a fixed clock, for tests.
func NewMapperWithClock(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

// FromOCR maps heuristically extracted fields onto a draft. The received
// date is always the mapping date, not a document date.
func (m *Mapper) FromOCR(fields ocrtext.Fields, res transcribe.Result, policy Policy) *Draft {
	_ = policy // the OCR path yields a single reference number, nothing to select

	conf := res.Confidence
	return &Draft{
		InvoiceOrSymbolNumber: fields.Symbol,
		IssueDate:             fields.IssueDate,
		DueDate:               fields.DueDate,
		ReceivedDate:          m.today(),
		Amount:                fields.Amount,
		RawSource: Source{
			Kind:       SourceOCR,
			Text:       res.Text,
			Confidence: &conf,
			IsInvoice:  fields.IsInvoice,
			Warning:    fields.Warning,
		},
	}
}

// FromISDOC maps a parsed structured invoice onto a draft. Any free-text
// note from the source is replaced with the rendered itemized note so
// vendor remarks never mix with the derived summary.
func (m *Mapper) FromISDOC(inv *isdoc.Invoice, policy Policy) *Draft {
	number := inv.ID
	if policy.UseVariableSymbol && inv.Payment.VariableSymbol != "" {
		number = inv.Payment.VariableSymbol
	}

	d := &Draft{
		InvoiceOrSymbolNumber: nonEmpty(number),
		IssueDate:             nonEmpty(inv.IssueDate),
		TaxPointDate:          nonEmpty(inv.TaxPointDate),
		DueDate:               nonEmpty(inv.DueDate),
		ReceivedDate:          m.today(),
		Amount:                nonZero(inv.Amounts.Payable),
		AmountExVat:           nonZero(inv.Amounts.ExVat),
		VatAmount:             nonZero(inv.Amounts.Vat),
		RawSource: Source{
			Kind:      SourceISDOC,
			IsInvoice: true,
			Invoice:   inv,
		},
	}
	if note := renderItemizedNote(inv.Lines); note != "" {
		d.Note = &note
	}
	return d
}

// renderItemizedNote produces a stable human-readable listing of the line
// items. Identical lines always render to identical text.
func renderItemizedNote(lines []isdoc.LineItem) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Položky:")
	for i, ln := range lines {
		desc := ln.Description
		if desc == "" {
			desc = "(bez popisu)"
		}
		qty := strconv.FormatFloat(ln.Quantity, 'f', -1, 64)
		if ln.Unit != "" {
			qty += " " + ln.Unit
		}
		fmt.Fprintf(&b, "\n%d. %s | %s x %.2f | bez DPH %.2f | DPH %.2f%% %.2f | s DPH %.2f",
			i+1, desc, qty, ln.UnitPrice, ln.TotalExVat,
			ln.VatRate, ln.TotalIncVat-ln.TotalExVat, ln.TotalIncVat)
	}
	return b.String()
}

func (m *Mapper) today() string {
	return m.now().Format("2006-01-02")
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
