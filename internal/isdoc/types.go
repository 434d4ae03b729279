// Package isdoc parses the Czech ISDOC electronic-invoice XML format.
// Vendor implementations drift across schema versions, so every field lookup
// walks an ordered list of element-path alternatives and takes the first one
// with non-empty text.
package isdoc

import "fmt"

// Invoice is the structured content of one ISDOC document.
type Invoice struct {
	ID           string
	IssueDate    string
	TaxPointDate string
	DueDate      string
	Note         string
	Supplier     Party
	Customer     Party
	Lines        []LineItem
	Amounts      Amounts
	Discount     Discount
	Payment      Payment
}

// Party identifies the supplier or the customer.
type Party struct {
	Name    string
	ICO     string
	DIC     string
	Address string
	Email   string
}

// LineItem is one invoice line. TotalIncVat is always derived from
// TotalExVat and VatRate, never read from the source document.
type LineItem struct {
	ID          string
	Description string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	TotalExVat  float64
	VatRate     float64
	TotalIncVat float64
}

// Amounts are the document-level totals as declared by the vendor.
type Amounts struct {
	ExVat   float64
	Vat     float64
	Payable float64
}

// Discount reconciles the computed and declared discount figures.
type Discount struct {
	Amount         float64
	Percent        float64
	DeclaredAmount float64
	Items          []DiscountItem
}

// DiscountItem is one declared allowance.
type DiscountItem struct {
	Description string
	Amount      float64
}

// Payment holds the bank-transfer details.
type Payment struct {
	Account        string
	BankCode       string
	IBAN           string
	SWIFT          string
	VariableSymbol string
	ConstantSymbol string
	SpecificSymbol string
}

// ParseError reports a document that is not well-formed XML. Field absence
// is never an error; only a document-level failure is.
type ParseError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed ISDOC document: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed ISDOC document: %s", e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
