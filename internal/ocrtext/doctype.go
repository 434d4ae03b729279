package ocrtext

import (
	"fmt"
	"strings"
)

// DocumentType is the result of the document-type check. The check never
// blocks extraction; a non-invoice document only carries a warning.
type DocumentType struct {
	IsInvoice bool
	Warning   string
}

var invoiceKeywords = []string{
	"faktura",
	"danovy doklad",
	"tax invoice",
	"invoice",
}

// Alternate document types checked in priority order when no invoice keyword
// is present.
var alternateDocTypes = []struct {
	label    string
	keywords []string
}{
	{"an order", []string{"objednavka", "purchase order", "order confirmation"}},
	{"a delivery note", []string{"dodaci list", "delivery note"}},
	{"a quotation", []string{"nabidka", "quotation"}},
}

// ClassifyDocumentType scans the text for invoice markers and, failing that,
// for markers of other common document types.
func ClassifyDocumentType(text string) DocumentType {
	normalized := normalizeForMatch(text)

	for _, kw := range invoiceKeywords {
		if strings.Contains(normalized, kw) {
			return DocumentType{IsInvoice: true}
		}
	}

	for _, alt := range alternateDocTypes {
		for _, kw := range alt.keywords {
			if strings.Contains(normalized, kw) {
				return DocumentType{
					Warning: fmt.Sprintf("document appears to be %s, not an invoice", alt.label),
				}
			}
		}
	}

	return DocumentType{Warning: "document does not look like an invoice"}
}
