package ocrtext

// Fields is everything the OCR-path extraction could pull out of one
// document. All fields except IsInvoice are optional; absence is a nil
// pointer, never a zero value.
type Fields struct {
	IssueDate *string
	DueDate   *string
	Amount    *float64
	Symbol    *string
	IsInvoice bool
	Warning   string
}

// Extractor runs all OCR-text heuristics over one document.
type Extractor struct {
	classifier *RoleClassifier
}

// NewExtractor creates an extractor with the default scoring table.
func NewExtractor() *Extractor {
	return NewExtractorWithWeights(DefaultWeights())
}

// NewExtractorWithWeights creates an extractor with a custom scoring table.
func NewExtractorWithWeights(w Weights) *Extractor {
	return &Extractor{classifier: NewRoleClassifier(w)}
}

// Extract pulls all supported fields out of the text. Missing fields are not
// errors; partial extraction is a normal outcome on noisy scans.
func (e *Extractor) Extract(text string) Fields {
	doc := ClassifyDocumentType(text)
	fields := Fields{IsInvoice: doc.IsInvoice, Warning: doc.Warning}

	roles := e.classifier.Classify(text)
	if roles.Issue != nil {
		d := roles.Issue.Candidate.Date
		fields.IssueDate = &d
	}
	if roles.Due != nil {
		d := roles.Due.Candidate.Date
		fields.DueDate = &d
	}

	if v, ok := ParseAmount(text); ok {
		fields.Amount = &v
	}
	if s, ok := ExtractSymbol(text); ok {
		fields.Symbol = &s
	}
	return fields
}
