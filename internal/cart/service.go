// Package cart prices and mutates shopper carts, applies coupons and reports
// free-shipping progress.
package cart

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Emitter publishes a cart event. Implemented by *kafka.Emitter.
type Emitter interface {
	Emit(key []byte, eventType, correlationID string, payload any)
}

// ThresholdSource yields the free-shipping threshold. Implemented by
// *settings.Service.
type ThresholdSource interface {
	ShippingThreshold(ctx context.Context) (decimal.Decimal, error)
}

type Service struct {
	Store      shop.Store
	Events     Emitter // optional
	Thresholds ThresholdSource
	Log        *zap.Logger
	Timeout    time.Duration
	Now        func() time.Time
}

type LineView struct {
	shop.CartLine
	Product   shop.Product    `json:"product"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type View struct {
	CartID   string          `json:"cart_id,omitempty"`
	Lines    []LineView      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s *Service) emit(userID, eventType, cartID string, payload any) {
	if s.Events == nil {
		return
	}
	s.Events.Emit(shop.PartitionKey(userID), eventType, cartID, payload)
}

func lookupErr(err error, what string) error {
	if errors.Is(err, shop.ErrNotFound) {
		return shop.NotFound(what)
	}
	return shop.StoreErr(err)
}

// AddLine puts delta more units of productID in v's cart, creating the cart
// and the line as needed.
func (s *Service) AddLine(ctx context.Context, v shop.Viewer, productID string, delta int) (shop.CartLine, error) {
	if err := v.RequireUser(); err != nil {
		return shop.CartLine{}, err
	}
	if delta < 1 {
		return shop.CartLine{}, shop.InvalidQuantity("quantity to add must be at least 1")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var saved shop.CartLine
	err := s.Store.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.Store.ProductByID(ctx, productID)
		if err != nil {
			return lookupErr(err, "product")
		}
		c, err := s.Store.CartByUser(ctx, v.UserID)
		if errors.Is(err, shop.ErrNotFound) {
			// A concurrent add may have created the cart and its lines
			// first; re-read so they are not overwritten.
			if _, err = s.Store.CreateCart(ctx, v.UserID); err == nil {
				c, err = s.Store.CartByUser(ctx, v.UserID)
			}
		}
		if err != nil {
			return shop.StoreErr(err)
		}

		line := shop.CartLine{CartID: c.ID, ProductID: productID}
		if existing := c.Line(productID); existing != nil {
			line = *existing
		}
		line.Quantity += delta
		shop.PriceLine(&line, *p)
		if saved, err = s.Store.SaveLine(ctx, line); err != nil {
			return shop.StoreErr(err)
		}
		return nil
	})
	if err != nil {
		return shop.CartLine{}, err
	}

	s.Log.Info("cart line added",
		zap.String("user_id", v.UserID),
		zap.String("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("quantity", saved.Quantity))
	s.emit(v.UserID, shop.EventCartLineAdded, saved.CartID, shop.CartLinePayload{
		UserID:     v.UserID,
		CartID:     saved.CartID,
		ProductID:  productID,
		Delta:      delta,
		Quantity:   saved.Quantity,
		TotalPrice: saved.TotalPrice,
	})
	return saved, nil
}

// Increment raises the line for productID to target units. target must be
// above the current quantity.
func (s *Service) Increment(ctx context.Context, v shop.Viewer, productID string, target int) (shop.CartLine, error) {
	return s.setQuantity(ctx, v, productID, target, false)
}

// Decrement lowers the line for productID to target units. target must be
// below the current quantity, so a line at one unit cannot be decremented;
// removing it is explicit.
func (s *Service) Decrement(ctx context.Context, v shop.Viewer, productID string, target int) (shop.CartLine, error) {
	return s.setQuantity(ctx, v, productID, target, true)
}

func (s *Service) setQuantity(ctx context.Context, v shop.Viewer, productID string, target int, decrement bool) (shop.CartLine, error) {
	if err := v.RequireUser(); err != nil {
		return shop.CartLine{}, err
	}
	if target < 1 {
		return shop.CartLine{}, shop.InvalidQuantity("quantity must be at least 1")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var saved shop.CartLine
	err := s.Store.WithTransaction(ctx, func(ctx context.Context) error {
		c, err := s.Store.CartByUser(ctx, v.UserID)
		if err != nil {
			return lookupErr(err, "cart")
		}
		existing := c.Line(productID)
		if existing == nil {
			return shop.NotFound("cart line")
		}
		switch {
		case decrement && existing.Quantity <= 1:
			return shop.InvalidQuantity("quantity cannot go below 1")
		case decrement && target >= existing.Quantity:
			return shop.InvalidQuantity("decrement target %d is not below %d", target, existing.Quantity)
		case !decrement && target <= existing.Quantity:
			return shop.InvalidQuantity("increment target %d is not above %d", target, existing.Quantity)
		}
		p, err := s.Store.ProductByID(ctx, productID)
		if err != nil {
			return lookupErr(err, "product")
		}
		line := *existing
		line.Quantity = target
		shop.PriceLine(&line, *p)
		if saved, err = s.Store.SaveLine(ctx, line); err != nil {
			return shop.StoreErr(err)
		}
		return nil
	})
	if err != nil {
		return shop.CartLine{}, err
	}

	s.Log.Info("cart line quantity set",
		zap.String("user_id", v.UserID),
		zap.String("product_id", productID),
		zap.Int("quantity", saved.Quantity))
	s.emit(v.UserID, shop.EventCartLineQuantitySet, saved.CartID, shop.CartLinePayload{
		UserID:     v.UserID,
		CartID:     saved.CartID,
		ProductID:  productID,
		Quantity:   saved.Quantity,
		TotalPrice: saved.TotalPrice,
	})
	return saved, nil
}

func (s *Service) RemoveLine(ctx context.Context, v shop.Viewer, productID string) error {
	if err := v.RequireUser(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.Store.CartByUser(ctx, v.UserID)
	if err != nil {
		return lookupErr(err, "cart")
	}
	if err := s.Store.DeleteLine(ctx, c.ID, productID); err != nil {
		return lookupErr(err, "cart line")
	}
	s.Log.Info("cart line removed", zap.String("user_id", v.UserID), zap.String("product_id", productID))
	s.emit(v.UserID, shop.EventCartLineRemoved, c.ID, shop.CartLinePayload{
		UserID:    v.UserID,
		CartID:    c.ID,
		ProductID: productID,
	})
	return nil
}

func (s *Service) Clear(ctx context.Context, v shop.Viewer) error {
	if err := v.RequireUser(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.Store.CartByUser(ctx, v.UserID)
	if err != nil {
		return lookupErr(err, "cart")
	}
	if err := s.Store.ClearCart(ctx, c.ID); err != nil {
		return shop.StoreErr(err)
	}
	s.Log.Info("cart cleared", zap.String("user_id", v.UserID))
	s.emit(v.UserID, shop.EventCartCleared, c.ID, shop.CartClearedPayload{UserID: v.UserID, CartID: c.ID})
	return nil
}

// load returns v's cart and the products its lines refer to. A viewer
// without a cart gets nil and no error.
func (s *Service) load(ctx context.Context, v shop.Viewer) (*shop.Cart, map[string]shop.Product, error) {
	c, err := s.Store.CartByUser(ctx, v.UserID)
	if errors.Is(err, shop.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, shop.StoreErr(err)
	}
	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}
	products, err := s.Store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, shop.StoreErr(err)
	}
	byID := make(map[string]shop.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return c, byID, nil
}

// Get returns v's cart with current prices, lines ordered by product name
// descending.
func (s *Service) Get(ctx context.Context, v shop.Viewer) (View, error) {
	if err := v.RequireUser(); err != nil {
		return View{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, products, err := s.load(ctx, v)
	if err != nil {
		return View{}, err
	}
	view := View{Lines: []LineView{}, Subtotal: decimal.Zero}
	if c == nil {
		return view, nil
	}
	view.CartID = c.ID
	for _, l := range c.Lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		view.Lines = append(view.Lines, LineView{CartLine: l, Product: p, UnitPrice: shop.EffectiveUnitPrice(p)})
	}
	sort.SliceStable(view.Lines, func(i, j int) bool {
		return view.Lines[i].Product.Name > view.Lines[j].Product.Name
	})
	view.Subtotal = shop.Subtotal(c.Lines, products)
	return view, nil
}

// ApplyCoupon quotes the discount code gives on v's cart. The coupon stays
// usable until it expires.
func (s *Service) ApplyCoupon(ctx context.Context, v shop.Viewer, code string) (shop.CouponQuote, error) {
	if err := v.RequireUser(); err != nil {
		return shop.CouponQuote{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return shop.CouponQuote{}, shop.ErrCouponInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	if _, err := s.Store.PurgeExpiredCoupons(ctx, v.UserID, now); err != nil {
		return shop.CouponQuote{}, shop.StoreErr(err)
	}
	coupon, err := s.Store.CouponByCode(ctx, code)
	if errors.Is(err, shop.ErrNotFound) {
		return shop.CouponQuote{}, shop.ErrCouponInvalid
	}
	if err != nil {
		return shop.CouponQuote{}, shop.StoreErr(err)
	}
	if !coupon.Usable(now) {
		return shop.CouponQuote{}, shop.ErrCouponInvalid
	}

	c, products, err := s.load(ctx, v)
	if err != nil {
		return shop.CouponQuote{}, err
	}
	if c == nil {
		return shop.CouponQuote{}, shop.NotFound("cart")
	}
	quote := shop.QuoteCoupon(shop.Subtotal(c.Lines, products), *coupon)

	s.Log.Info("coupon applied",
		zap.String("user_id", v.UserID),
		zap.String("code", coupon.Code),
		zap.String("new_total", quote.NewTotal.StringFixed(2)))
	s.emit(v.UserID, shop.EventCouponApplied, c.ID, shop.CouponAppliedPayload{
		UserID:             v.UserID,
		Code:               coupon.Code,
		DiscountPercentage: coupon.DiscountPercentage,
		Subtotal:           quote.Subtotal,
		NewTotal:           quote.NewTotal,
	})
	return quote, nil
}

// ActiveCoupon drops v's expired coupons and returns the first one still
// usable, or nil.
func (s *Service) ActiveCoupon(ctx context.Context, v shop.Viewer) (*shop.Coupon, error) {
	if err := v.RequireUser(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	n, err := s.Store.PurgeExpiredCoupons(ctx, v.UserID, now)
	if err != nil {
		return nil, shop.StoreErr(err)
	}
	if n > 0 {
		s.Log.Debug("expired coupons purged", zap.String("user_id", v.UserID), zap.Int("count", n))
	}
	coupons, err := s.Store.ActiveCoupons(ctx, v.UserID)
	if err != nil {
		return nil, shop.StoreErr(err)
	}
	for _, c := range coupons {
		if c.Usable(now) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

// ShippingProgress measures v's cart against the free-shipping threshold.
// Anonymous viewers and viewers without a cart count as an empty cart.
func (s *Service) ShippingProgress(ctx context.Context, v shop.Viewer) (shop.ShippingProgress, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	threshold, err := s.Thresholds.ShippingThreshold(ctx)
	if err != nil {
		return shop.ShippingProgress{}, err
	}
	subtotal := decimal.Zero
	if !v.Anonymous() {
		c, products, err := s.load(ctx, v)
		if err != nil {
			return shop.ShippingProgress{}, err
		}
		if c != nil {
			subtotal = shop.Subtotal(c.Lines, products)
		}
	}
	return shop.Progress(subtotal, threshold), nil
}
