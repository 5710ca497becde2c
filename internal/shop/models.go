package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        decimal.Decimal  `json:"price"`
	Offer        *decimal.Decimal `json:"offer,omitempty"` // nil or zero means no offer
	CategoryID   string           `json:"category_id"`
	CategoryName string           `json:"category_name"`
	Featured     bool             `json:"featured"`
	Rate         int              `json:"rate"` // rounded average rating
	RatingCount  int              `json:"rating_count"`
	Sizes        []string         `json:"sizes"`
	Images       []string         `json:"images"`
	CreatedAt    time.Time        `json:"created_at"`
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type Cart struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}

// Line returns the line holding productID, or nil.
func (c *Cart) Line(productID string) *CartLine {
	if c == nil {
		return nil
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

type CartLine struct {
	ID         string          `json:"id"`
	CartID     string          `json:"cart_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"` // Quantity × EffectiveUnitPrice at last mutation
}

type Rating struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Rate      int       `json:"rate"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingSummary is one row of the per-product rating aggregation.
type RatingSummary struct {
	ProductID string
	Average   float64
	Count     int
}

type Coupon struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discount_percentage"`
	ExpiresAt          time.Time `json:"expires_at"`
	Active             bool      `json:"active"`
	UserID             string    `json:"user_id"`
}

// Usable reports whether the coupon can be applied at now.
func (c Coupon) Usable(now time.Time) bool {
	return c.Active && c.ExpiresAt.After(now)
}

// Setting is a keyed singleton row updated in place.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SettingShippingThreshold = "shipping_threshold"
	SettingAppbarText        = "appbar_text"
)
