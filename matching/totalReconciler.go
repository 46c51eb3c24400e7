package matching

import "github.com/shopspring/decimal"

// ReconcileTotals checks the invoice total against the PO total. It returns
// the variance percentage (used by the score) and a total discrepancy when
// the variance exceeds the policy tolerance.
func ReconcileTotals(agg Aggregate, policy Policy) (decimal.Decimal, *Discrepancy) {
	pct := variancePct(agg.POTotal, agg.InvoiceTotal)
	if pct.LessThanOrEqual(policy.TotalTolerancePct) {
		return pct, nil
	}

	severity := SeverityMinor
	switch {
	case pct.GreaterThan(five):
		severity = SeverityCritical
	case pct.GreaterThan(two):
		severity = SeverityMajor
	}

	return pct, &Discrepancy{
		Kind:     DiscrepancyKindTotal,
		Expected: agg.POTotal,
		Actual:   agg.InvoiceTotal,
		Variance: agg.InvoiceTotal.Sub(agg.POTotal),
		Severity: severity,
	}
}
