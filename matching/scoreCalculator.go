package matching

import "github.com/shopspring/decimal"

var (
	lineWeight       = decimal.RequireFromString("0.7")
	totalWeight      = decimal.RequireFromString("0.3")
	maxTotalPenalty  = decimal.NewFromInt(50)
	totalPenaltyRate = decimal.NewFromInt(10)
)

// CalculateScore blends the share of fully matching lines (70%) with a total
// variance penalty (30%) and rounds half away from zero into 0..100.
func CalculateScore(lineMatches []LineItemMatch, totalVariancePct decimal.Decimal) int {
	lineScore := hundred
	if len(lineMatches) > 0 {
		matching := 0
		for _, m := range lineMatches {
			if m.Matched() {
				matching++
			}
		}
		lineScore = decimal.NewFromInt(int64(matching)).
			Div(decimal.NewFromInt(int64(len(lineMatches)))).
			Mul(hundred)
	}

	penalty := decimal.Min(totalVariancePct.Mul(totalPenaltyRate), maxTotalPenalty)
	totalScore := hundred.Sub(penalty)

	score := lineScore.Mul(lineWeight).Add(totalScore.Mul(totalWeight)).Round(0).IntPart()
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}
