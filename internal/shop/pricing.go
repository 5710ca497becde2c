package shop

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// HasOffer reports whether p carries a usable offer price.
func HasOffer(p Product) bool {
	return p.Offer != nil && !p.Offer.IsZero()
}

// EffectiveUnitPrice is the price a cart line is charged per unit:
// the offer when present and non-zero, otherwise the list price.
func EffectiveUnitPrice(p Product) decimal.Decimal {
	if HasOffer(p) {
		return *p.Offer
	}
	return p.Price
}

// PriceLine recomputes the cached total of line from product.
func PriceLine(line *CartLine, p Product) {
	line.TotalPrice = EffectiveUnitPrice(p).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Subtotal sums quantity × current unit price over lines. Lines whose
// product is missing from products contribute nothing.
func Subtotal(lines []CartLine, products map[string]Product) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		total = total.Add(EffectiveUnitPrice(p).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

type CouponQuote struct {
	Code               string          `json:"code"`
	DiscountPercentage int             `json:"discount_percentage"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	NewTotal           decimal.Decimal `json:"new_total"`
}

// QuoteCoupon applies a percentage discount to subtotal. Amounts are
// rounded to cents.
func QuoteCoupon(subtotal decimal.Decimal, c Coupon) CouponQuote {
	pct := decimal.NewFromInt(int64(c.DiscountPercentage))
	discount := subtotal.Mul(pct).Div(hundred)
	return CouponQuote{
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
		Subtotal:           subtotal.Round(2),
		DiscountAmount:     discount.Round(2),
		NewTotal:           subtotal.Sub(discount).Round(2),
	}
}
