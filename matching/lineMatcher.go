package matching

import "github.com/shopspring/decimal"

var (
	five = decimal.NewFromInt(5)
	two  = decimal.NewFromInt(2)
	ten  = decimal.NewFromInt(10)
)

// MatchLines compares every sku on the PO or the invoice, in sku order.
func MatchLines(agg Aggregate, policy Policy) ([]LineItemMatch, []Discrepancy) {
	skus := make(map[string]struct{}, len(agg.POBySku)+len(agg.InvoiceBySku))
	for sku := range agg.POBySku {
		skus[sku] = struct{}{}
	}
	for sku := range agg.InvoiceBySku {
		skus[sku] = struct{}{}
	}

	matches := make([]LineItemMatch, 0, len(skus))
	var discrepancies []Discrepancy

	for _, sku := range sortedKeys(skus) {
		po, onPO := agg.POBySku[sku]
		inv, onInvoice := agg.InvoiceBySku[sku]
		received := agg.ReceivedBySku[sku]

		switch {
		case onInvoice && !onPO:
			discrepancies = append(discrepancies, Discrepancy{
				Kind:     DiscrepancyKindMissingItem,
				Sku:      sku,
				Expected: decimal.Zero,
				Actual:   inv.Quantity,
				Variance: inv.Quantity,
				Severity: SeverityCritical,
			})
		case onPO && !onInvoice:
			// unbilled and unreceived lines are not due yet
			if received.IsPositive() {
				discrepancies = append(discrepancies, Discrepancy{
					Kind:     DiscrepancyKindMissingItem,
					Sku:      sku,
					Expected: po.Quantity,
					Actual:   decimal.Zero,
					Variance: po.Quantity.Neg(),
					Severity: SeverityMajor,
				})
			}
		default:
			m, ds := compareLine(sku, po, inv, received, policy)
			matches = append(matches, m)
			discrepancies = append(discrepancies, ds...)
		}
	}

	return matches, discrepancies
}

func compareLine(sku string, po, inv AggregatedLine, received decimal.Decimal, policy Policy) (LineItemMatch, []Discrepancy) {
	var discrepancies []Discrepancy

	qtyPct := variancePct(po.Quantity, inv.Quantity)
	qtyMatch := qtyPct.LessThanOrEqual(policy.QuantityTolerancePct)
	if !qtyMatch {
		discrepancies = append(discrepancies, Discrepancy{
			Kind:     DiscrepancyKindQuantity,
			Sku:      sku,
			Expected: po.Quantity,
			Actual:   inv.Quantity,
			Variance: inv.Quantity.Sub(po.Quantity),
			Severity: quantitySeverity(qtyPct),
		})
	}

	priceVariance := inv.UnitPrice.Sub(po.UnitPrice).Abs()
	priceMatch := priceVariance.LessThanOrEqual(policy.PriceTolerance)
	if !priceMatch {
		discrepancies = append(discrepancies, Discrepancy{
			Kind:     DiscrepancyKindPrice,
			Sku:      sku,
			Expected: po.UnitPrice,
			Actual:   inv.UnitPrice,
			Variance: inv.UnitPrice.Sub(po.UnitPrice),
			Severity: priceSeverity(priceVariance),
		})
	}

	name := po.Name
	if name == "" {
		name = inv.Name
	}

	return LineItemMatch{
		Sku:               sku,
		ProductName:       name,
		OrderedQty:        po.Quantity,
		InvoicedQty:       inv.Quantity,
		ReceivedQty:       received,
		OrderedUnitPrice:  po.UnitPrice,
		InvoicedUnitPrice: inv.UnitPrice,
		QuantityMatch:     qtyMatch,
		PriceMatch:        priceMatch,
	}, discrepancies
}

func quantitySeverity(pct decimal.Decimal) Severity {
	switch {
	case pct.GreaterThan(ten):
		return SeverityCritical
	case pct.GreaterThan(five):
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

// priceSeverity grades an absolute unit price difference.
func priceSeverity(variance decimal.Decimal) Severity {
	switch {
	case variance.GreaterThan(five):
		return SeverityCritical
	case variance.GreaterThan(two):
		return SeverityMajor
	default:
		return SeverityMinor
	}
}
