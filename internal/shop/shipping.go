package shop

import "github.com/shopspring/decimal"

type ShippingProgress struct {
	Threshold      decimal.Decimal `json:"threshold"`
	Percentage     float64         `json:"percentage"`
	LeftPercentage float64         `json:"left_percentage"`
	LeftMoney      decimal.Decimal `json:"left_money"`
	Complete       bool            `json:"complete"`
}

// Progress measures subtotal against the free-shipping threshold. A
// threshold that is not positive counts as already reached.
func Progress(subtotal, threshold decimal.Decimal) ShippingProgress {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	if !threshold.IsPositive() {
		return ShippingProgress{
			Threshold:  threshold,
			Percentage: 100,
			LeftMoney:  decimal.Zero,
			Complete:   true,
		}
	}
	left := decimal.Max(threshold.Sub(subtotal), decimal.Zero)
	leftPct := left.Div(threshold).Mul(hundred)
	pct := decimal.Min(hundred.Sub(leftPct), hundred)
	return ShippingProgress{
		Threshold:      threshold,
		Percentage:     pct.InexactFloat64(),
		LeftPercentage: leftPct.InexactFloat64(),
		LeftMoney:      left,
		Complete:       subtotal.GreaterThanOrEqual(threshold),
	}
}
