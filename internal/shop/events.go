package shop

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCartLineAdded       = "CartLineAdded"
	EventCartLineQuantitySet = "CartLineQuantitySet"
	EventCartLineRemoved     = "CartLineRemoved"
	EventCartCleared         = "CartCleared"
	EventCouponApplied       = "CouponApplied"
)

const TopicCart = "storefront.cart"

// Partition key = user_id, so one shopper's cart events stay ordered.
func PartitionKey(userID string) []byte { return []byte(userID) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // cart_id
	Payload       json.RawMessage `json:"payload"`
}

type CartLinePayload struct {
	UserID     string          `json:"user_id"`
	CartID     string          `json:"cart_id"`
	ProductID  string          `json:"product_id"`
	Delta      int             `json:"delta,omitempty"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type CartClearedPayload struct {
	UserID string `json:"user_id"`
	CartID string `json:"cart_id"`
}

type CouponAppliedPayload struct {
	UserID             string          `json:"user_id"`
	Code               string          `json:"code"`
	DiscountPercentage int             `json:"discount_percentage"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	NewTotal           decimal.Decimal `json:"new_total"`
}
