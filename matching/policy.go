package matching

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DefaultQuantityTolerancePct = 2
	DefaultTotalTolerancePct    = 1
	DefaultMinScoreForApproval  = 95
)

// DefaultPriceTolerance is the allowed absolute unit price drift in currency units.
var DefaultPriceTolerance = decimal.RequireFromString("0.50")

// Policy holds the tolerances used by a single reconciliation.
type Policy struct {
	QuantityTolerancePct decimal.Decimal `json:"quantity_tolerance_pct"`
	PriceTolerance       decimal.Decimal `json:"price_tolerance"`
	TotalTolerancePct    decimal.Decimal `json:"total_tolerance_pct"`
	MinScoreForApproval  int             `json:"min_score_for_approval" validate:"gte=0,lte=100"`
}

func DefaultPolicy() Policy {
	return Policy{
		QuantityTolerancePct: decimal.NewFromInt(DefaultQuantityTolerancePct),
		PriceTolerance:       DefaultPriceTolerance,
		TotalTolerancePct:    decimal.NewFromInt(DefaultTotalTolerancePct),
		MinScoreForApproval:  DefaultMinScoreForApproval,
	}
}

func (p Policy) Validate() error {
	if p.QuantityTolerancePct.IsNegative() {
		return fmt.Errorf("quantity tolerance must not be negative: %s", p.QuantityTolerancePct)
	}
	if p.PriceTolerance.IsNegative() {
		return fmt.Errorf("price tolerance must not be negative: %s", p.PriceTolerance)
	}
	if p.TotalTolerancePct.IsNegative() {
		return fmt.Errorf("total tolerance must not be negative: %s", p.TotalTolerancePct)
	}
	if p.MinScoreForApproval < 0 || p.MinScoreForApproval > 100 {
		return fmt.Errorf("min score for approval must be within 0..100: %d", p.MinScoreForApproval)
	}
	return nil
}
