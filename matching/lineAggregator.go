package matching

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type AggregatedLine struct {
	Sku       string
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Aggregate is the per-sku view of one PO, its invoice and its receipts.
type Aggregate struct {
	POBySku       map[string]AggregatedLine
	InvoiceBySku  map[string]AggregatedLine
	ReceivedBySku map[string]decimal.Decimal
	POTotal       decimal.Decimal
	InvoiceTotal  decimal.Decimal
	ReceiptTotal  decimal.Decimal
}

// AggregateLines builds the sku maps and the three totals.
// Repeated skus on one side are merged: quantities are summed and the unit
// price becomes the quantity-weighted average (the last price when the merged
// quantity is zero).
func AggregateLines(input Input) Aggregate {
	agg := Aggregate{
		POBySku:       mergeLines(input.POLines),
		InvoiceBySku:  mergeLines(input.Invoice.Lines),
		ReceivedBySku: make(map[string]decimal.Decimal),
		POTotal:       lineTotal(input.POLines),
	}

	if input.Invoice.DeclaredTotal != nil {
		agg.InvoiceTotal = *input.Invoice.DeclaredTotal
	} else {
		agg.InvoiceTotal = lineTotal(input.Invoice.Lines)
	}

	for _, r := range input.Receipts {
		agg.ReceivedBySku[r.Sku] = agg.ReceivedBySku[r.Sku].Add(r.Quantity)
	}

	receiptTotal := decimal.Zero
	for _, sku := range sortedKeys(agg.ReceivedBySku) {
		po, ok := agg.POBySku[sku]
		if !ok {
			continue
		}
		receiptTotal = receiptTotal.Add(agg.ReceivedBySku[sku].Mul(po.UnitPrice))
	}
	agg.ReceiptTotal = receiptTotal

	return agg
}

func lineTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Quantity.Mul(l.UnitPrice))
	}
	return total
}

func mergeLines(lines []Line) map[string]AggregatedLine {
	type acc struct {
		name      string
		qty       decimal.Decimal
		amount    decimal.Decimal
		lastPrice decimal.Decimal
	}
	accs := make(map[string]*acc, len(lines))
	for _, l := range lines {
		a, ok := accs[l.Sku]
		if !ok {
			a = &acc{name: l.Name}
			accs[l.Sku] = a
		}
		if a.name == "" {
			a.name = l.Name
		}
		a.qty = a.qty.Add(l.Quantity)
		a.amount = a.amount.Add(l.Quantity.Mul(l.UnitPrice))
		a.lastPrice = l.UnitPrice
	}

	merged := make(map[string]AggregatedLine, len(accs))
	for sku, a := range accs {
		price := a.lastPrice
		if !a.qty.IsZero() {
			price = a.amount.Div(a.qty)
		}
		merged[sku] = AggregatedLine{
			Sku:       sku,
			Name:      a.name,
			Quantity:  a.qty,
			UnitPrice: price,
		}
	}
	return merged
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// variancePct returns |actual-expected|/expected*100, or 100 when expected is zero.
func variancePct(expected, actual decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		return hundred
	}
	return actual.Sub(expected).Abs().Div(expected.Abs()).Mul(hundred)
}
