package isdoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Ordered element-path alternatives per field. Namespaces are ignored; paths
// are local names relative to the document root. First non-empty text wins.
var (
	idPaths        = []string{"ID"}
	issueDatePaths = []string{"IssueDate", "IssuingDate"}
	taxPointPaths  = []string{"TaxPointDate", "TaxPoint/TaxPointDate"}
	dueDatePaths   = []string{
		"PaymentMeans/Payment/Details/PaymentDueDate",
		"PaymentMeans/PaymentDueDate",
		"PaymentDueDate",
	}
	notePaths = []string{"Note"}

	supplierRoots = []string{"AccountingSupplierParty/Party", "SellerSupplierParty/Party"}
	customerRoots = []string{"AccountingCustomerParty/Party", "BuyerCustomerParty/Party"}

	partyNamePaths  = []string{"PartyName/Name"}
	partyICOPaths   = []string{"PartyIdentification/ID"}
	partyDICPaths   = []string{"PartyTaxScheme/CompanyID"}
	partyEmailPaths = []string{"Contact/ElectronicMail", "Contact/Email"}

	linePaths = []string{"InvoiceLines/InvoiceLine"}

	lineIDPaths = []string{"ID"}
	// Description comes strictly from the item description/name elements.
	// SellersItemIdentification/ID is deliberately absent: vendors misuse it
	// for free text, which produced nonsensical line descriptions.
	lineDescriptionPaths = []string{"Item/Description", "Item/Name"}
	lineQuantityPaths    = []string{"InvoicedQuantity"}
	lineUnitPricePaths   = []string{"UnitPrice", "Item/UnitPrice"}
	lineExVatPaths       = []string{"LineExtensionAmount"}
	lineVatRatePaths     = []string{"ClassifiedTaxCategory/Percent", "TaxCategory/Percent"}

	exVatPaths   = []string{"LegalMonetaryTotal/TaxExclusiveAmount", "TaxTotal/TaxableAmount"}
	vatPaths     = []string{"TaxTotal/TaxAmount", "LegalMonetaryTotal/TaxAmount"}
	payablePaths = []string{"LegalMonetaryTotal/PayableAmount", "LegalMonetaryTotal/TaxInclusiveAmount"}

	allowanceTotalPaths = []string{"LegalMonetaryTotal/AllowanceTotalAmount"}
	allowancePaths      = []string{"AllowancesCharges/AllowanceCharge"}

	allowanceReasonPaths = []string{"Description", "AllowanceChargeReason", "Reason"}
	allowanceAmountPaths = []string{"Amount", "AllowanceChargeAmount"}

	accountPaths  = []string{"PaymentMeans/Payment/Details/ID", "PaymentMeans/Details/ID"}
	bankCodePaths = []string{"PaymentMeans/Payment/Details/BankCode", "PaymentMeans/Details/BankCode"}
	ibanPaths     = []string{"PaymentMeans/Payment/Details/IBAN", "PaymentMeans/Details/IBAN"}
	swiftPaths    = []string{
		"PaymentMeans/Payment/Details/BIC",
		"PaymentMeans/Details/BIC",
		"PaymentMeans/Payment/Details/SWIFT",
	}
	variableSymbolPaths = []string{"PaymentMeans/Payment/VariableSymbol", "PaymentMeans/VariableSymbol"}
	constantSymbolPaths = []string{"PaymentMeans/Payment/ConstantSymbol", "PaymentMeans/ConstantSymbol"}
	specificSymbolPaths = []string{"PaymentMeans/Payment/SpecificSymbol", "PaymentMeans/SpecificSymbol"}
)

// Parser parses ISDOC XML documents.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. A nil logger is replaced with a no-op one.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse reads one ISDOC document. A document that is not well-formed XML
// fails with *ParseError; missing fields inside a well-formed document do
// not.
func (p *Parser) Parse(data []byte) (*Invoice, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, &ParseError{Message: "document is not well-formed XML", Cause: err}
	}

	inv := &Invoice{
		ID:           root.firstText(idPaths...),
		IssueDate:    root.firstText(issueDatePaths...),
		TaxPointDate: root.firstText(taxPointPaths...),
		DueDate:      root.firstText(dueDatePaths...),
		Note:         root.firstText(notePaths...),
		Supplier:     parseParty(root, supplierRoots),
		Customer:     parseParty(root, customerRoots),
		Lines:        p.parseLines(root),
		Payment: Payment{
			Account:        root.firstText(accountPaths...),
			BankCode:       root.firstText(bankCodePaths...),
			IBAN:           root.firstText(ibanPaths...),
			SWIFT:          root.firstText(swiftPaths...),
			VariableSymbol: root.firstText(variableSymbolPaths...),
			ConstantSymbol: root.firstText(constantSymbolPaths...),
			SpecificSymbol: root.firstText(specificSymbolPaths...),
		},
	}
	inv.Amounts = Amounts{
		ExVat:   root.firstAmount(exVatPaths...),
		Vat:     root.firstAmount(vatPaths...),
		Payable: root.firstAmount(payablePaths...),
	}
	inv.Discount = p.reconcileDiscount(root, inv)

	return inv, nil
}

func parseParty(root *node, roots []string) Party {
	var party *node
	for _, path := range roots {
		if n := root.find(path); n != nil {
			party = n
			break
		}
	}
	if party == nil {
		return Party{}
	}
	return Party{
		Name:    party.firstText(partyNamePaths...),
		ICO:     party.firstText(partyICOPaths...),
		DIC:     party.firstText(partyDICPaths...),
		Address: formatAddress(party.find("PostalAddress")),
		Email:   party.firstText(partyEmailPaths...),
	}
}

func formatAddress(addr *node) string {
	if addr == nil {
		return ""
	}
	street := addr.firstText("StreetName")
	if num := addr.firstText("BuildingNumber"); num != "" {
		street = strings.TrimSpace(street + " " + num)
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{street, addr.firstText("CityName"), addr.firstText("PostalZone")} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func (p *Parser) parseLines(root *node) []LineItem {
	nodes := root.findAll(linePaths[0])
	lines := make([]LineItem, 0, len(nodes))
	for _, ln := range nodes {
		item := LineItem{
			ID:          ln.firstText(lineIDPaths...),
			Description: ln.firstText(lineDescriptionPaths...),
			Quantity:    ln.firstAmount(lineQuantityPaths...),
			Unit:        ln.firstAttr(lineQuantityPaths[0], "unitCode"),
			UnitPrice:   ln.firstAmount(lineUnitPricePaths...),
			TotalExVat:  ln.firstAmount(lineExVatPaths...),
			VatRate:     ln.firstAmount(lineVatRatePaths...),
		}
		// Derived, never sourced: vendor XML rounds this field
		// inconsistently.
		item.TotalIncVat = round2(item.TotalExVat * (1 + item.VatRate/100))
		lines = append(lines, item)
	}
	return lines
}

// reconcileDiscount compares the computed discount (line totals minus the
// payable amount) with the declared allowance total and trusts the computed
// figure when it is positive.
func (p *Parser) reconcileDiscount(root *node, inv *Invoice) Discount {
	declared := root.firstAmount(allowanceTotalPaths...)

	var items []DiscountItem
	for _, n := range root.findAll(allowancePaths[0]) {
		items = append(items, DiscountItem{
			Description: n.firstText(allowanceReasonPaths...),
			Amount:      n.firstAmount(allowanceAmountPaths...),
		})
	}

	itemsTotal := 0.0
	for _, ln := range inv.Lines {
		itemsTotal += ln.TotalIncVat
	}

	computed := round2(itemsTotal - inv.Amounts.Payable)
	amount := declared
	if computed > 0 {
		amount = computed
	} else if computed < 0 {
		// Lines sum to less than the payable amount; the document is
		// internally inconsistent, so fall back to the declared total.
		p.logger.Warn("computed discount is negative, using declared allowance total",
			zap.Float64("computed", computed),
			zap.Float64("declared", declared))
	}

	percent := 0.0
	if itemsTotal > 0 {
		percent = round2(amount / itemsTotal * 100)
	}

	return Discount{
		Amount:         amount,
		Percent:        percent,
		DeclaredAmount: declared,
		Items:          items,
	}
}

// node is a minimal element tree; lookups ignore namespaces and match on
// local names only, since vendors disagree even about those.
type node struct {
	name     string
	text     string
	attrs    map[string]string
	children []*node
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.attrs[a.Name.Local] = a.Value
				}
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			stack[len(stack)-1].text += string(t)
		}
	}

	if len(root.children) == 0 {
		return nil, errors.New("no root element")
	}
	return root.children[0], nil
}

func (n *node) find(path string) *node {
	cur := n
	for _, part := range strings.Split(path, "/") {
		var next *node
		for _, c := range cur.children {
			if c.name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (n *node) findAll(path string) []*node {
	parent := n
	leaf := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		parent = n.find(path[:idx])
		leaf = path[idx+1:]
		if parent == nil {
			return nil
		}
	}
	var out []*node
	for _, c := range parent.children {
		if c.name == leaf {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) firstText(paths ...string) string {
	for _, path := range paths {
		if found := n.find(path); found != nil {
			if s := strings.TrimSpace(found.text); s != "" {
				return s
			}
		}
	}
	return ""
}

func (n *node) firstAttr(path, attr string) string {
	if found := n.find(path); found != nil {
		return found.attrs[attr]
	}
	return ""
}

// firstAmount parses the first non-empty alternative as a number. An
// unparsable numeral counts as absent, not as zero-by-accident: the next
// alternative still gets a chance.
func (n *node) firstAmount(paths ...string) float64 {
	for _, path := range paths {
		found := n.find(path)
		if found == nil {
			continue
		}
		s := strings.TrimSpace(found.text)
		if s == "" {
			continue
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) {
			return v
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
