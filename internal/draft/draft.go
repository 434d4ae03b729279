// Package draft maps either extraction path onto one canonical invoice
// draft record, the shape handed to the downstream confirmation UI.
package draft

import "github.com/dokladio/invoice-extract/internal/isdoc"

// Policy carries the operator-facing mapping choices. UseVariableSymbol
// selects the payment variable symbol over the invoice number as the
// draft's primary reference; the mapper only applies the flag.
type Policy struct {
	UseVariableSymbol bool
}

// Draft is the canonical invoice draft produced regardless of input path.
// Absent fields are nil, never empty strings or zero-by-accident.
type Draft struct {
	InvoiceOrSymbolNumber *string  `json:"invoiceOrSymbolNumber,omitempty"`
	IssueDate             *string  `json:"issueDate,omitempty"`
	TaxPointDate          *string  `json:"taxPointDate,omitempty"`
	DueDate               *string  `json:"dueDate,omitempty"`
	ReceivedDate          string   `json:"receivedDate"`
	Amount                *float64 `json:"amount,omitempty"`
	AmountExVat           *float64 `json:"amountExVat,omitempty"`
	VatAmount             *float64 `json:"vatAmount,omitempty"`
	Note                  *string  `json:"note,omitempty"`
	DepartmentCodes       []string `json:"departmentCodes,omitempty"`
	RawSource             Source   `json:"rawSourcePayload"`
}

// Source preserves what the mapper saw, for audit and for the
// confirmation UI.
type Source struct {
	Kind       string         `json:"kind"`
	Text       string         `json:"text,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	IsInvoice  bool           `json:"isInvoice"`
	Warning    string         `json:"warning,omitempty"`
	Invoice    *isdoc.Invoice `json:"invoice,omitempty"`
}

// Source kinds.
const (
	SourceOCR   = "ocr"
	SourceISDOC = "isdoc"
)
