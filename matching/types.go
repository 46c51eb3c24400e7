package matching

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one PO or invoice line as read from the store.
type Line struct {
	Sku       string
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

type Receipt struct {
	Sku        string
	Quantity   decimal.Decimal
	ReceivedAt time.Time
}

// Invoice is the latest bill linked to a PO. DeclaredTotal is nil when the
// bill carries no header total and the line sum must be used instead.
type Invoice struct {
	Id            int
	DeclaredTotal *decimal.Decimal
	Lines         []Line
}

type Input struct {
	PurchaseOrderId int
	POLines         []Line
	Invoice         Invoice
	Receipts        []Receipt
}

type LineItemMatch struct {
	Sku               string          `json:"sku"`
	ProductName       string          `json:"product_name"`
	OrderedQty        decimal.Decimal `json:"ordered_qty"`
	InvoicedQty       decimal.Decimal `json:"invoiced_qty"`
	ReceivedQty       decimal.Decimal `json:"received_qty"`
	OrderedUnitPrice  decimal.Decimal `json:"ordered_unit_price"`
	InvoicedUnitPrice decimal.Decimal `json:"invoiced_unit_price"`
	QuantityMatch     bool            `json:"quantity_match"`
	PriceMatch        bool            `json:"price_match"`
}

func (m LineItemMatch) Matched() bool {
	return m.QuantityMatch && m.PriceMatch
}

type Discrepancy struct {
	Kind     DiscrepancyKind `json:"kind"`
	Sku      string          `json:"sku,omitempty"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Variance decimal.Decimal `json:"variance"`
	Severity Severity        `json:"severity"`
}

type Verdict struct {
	Status          MatchStatus
	AutoApproved    bool
	InvoiceVerified bool
}

// Result is the complete outcome of reconciling one PO.
type Result struct {
	PurchaseOrderId  int             `json:"purchase_order_id"`
	InvoiceId        int             `json:"invoice_id"`
	POTotal          decimal.Decimal `json:"po_total"`
	InvoiceTotal     decimal.Decimal `json:"invoice_total"`
	ReceiptTotal     decimal.Decimal `json:"receipt_total"`
	TotalVariancePct decimal.Decimal `json:"total_variance_pct"`
	Score            int             `json:"score"`
	Status           MatchStatus     `json:"status"`
	LineMatches      []LineItemMatch `json:"line_matches"`
	Discrepancies    []Discrepancy   `json:"discrepancies"`
	AutoApproved     bool            `json:"auto_approved"`
	InvoiceVerified  bool            `json:"invoice_verified"`
}

func (r Result) CountBySeverity(severity Severity) int {
	return countSeverity(r.Discrepancies, severity)
}

func countSeverity(discrepancies []Discrepancy, severity Severity) int {
	n := 0
	for _, d := range discrepancies {
		if d.Severity == severity {
			n++
		}
	}
	return n
}
