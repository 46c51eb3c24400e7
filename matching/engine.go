// Package matching reconciles a purchase order against its latest invoice
// and goods receipts. Every stage is a pure function over in-memory records.
package matching

// Reconcile runs aggregation, line matching, total reconciliation, scoring
// and the verdict for one PO. Line discrepancies come first in sku order,
// followed by the total discrepancy if any.
func Reconcile(input Input, policy Policy) Result {
	agg := AggregateLines(input)
	lineMatches, discrepancies := MatchLines(agg, policy)

	totalVariancePct, totalDiscrepancy := ReconcileTotals(agg, policy)
	if totalDiscrepancy != nil {
		discrepancies = append(discrepancies, *totalDiscrepancy)
	}
	if discrepancies == nil {
		discrepancies = []Discrepancy{}
	}

	score := CalculateScore(lineMatches, totalVariancePct)
	verdict := DecideVerdict(discrepancies, score, policy)

	return Result{
		PurchaseOrderId:  input.PurchaseOrderId,
		InvoiceId:        input.Invoice.Id,
		POTotal:          agg.POTotal,
		InvoiceTotal:     agg.InvoiceTotal,
		ReceiptTotal:     agg.ReceiptTotal,
		TotalVariancePct: totalVariancePct,
		Score:            score,
		Status:           verdict.Status,
		LineMatches:      lineMatches,
		Discrepancies:    discrepancies,
		AutoApproved:     verdict.AutoApproved,
		InvoiceVerified:  verdict.InvoiceVerified,
	}
}
