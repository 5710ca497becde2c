package shop

import (
	"context"
	"time"
)

// The store interfaces below are the persistence collaborator. Lookups
// that find nothing return an error matching ErrNotFound; every other
// error is treated as the store being unavailable.

type ProductStore interface {
	FindProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	CountProducts(ctx context.Context, where ProductPredicate) (int, error)
	ProductByID(ctx context.Context, id string) (*Product, error)
	ProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
	// TopRated ranks products matching where by average rating, highest
	// first, and returns the window [offset, offset+limit).
	TopRated(ctx context.Context, where ProductPredicate, offset, limit int) ([]RatingSummary, error)
	// Categories lists every category ordered by name.
	Categories(ctx context.Context) ([]Category, error)
}

type CartStore interface {
	CartByUser(ctx context.Context, userID string) (*Cart, error)
	CreateCart(ctx context.Context, userID string) (*Cart, error)
	// SaveLine inserts or replaces the line for (CartID, ProductID).
	SaveLine(ctx context.Context, line CartLine) (CartLine, error)
	DeleteLine(ctx context.Context, cartID, productID string) error
	ClearCart(ctx context.Context, cartID string) error
}

type CouponStore interface {
	// PurgeExpiredCoupons deletes userID's coupons that expired before now.
	PurgeExpiredCoupons(ctx context.Context, userID string, now time.Time) (int, error)
	CouponByCode(ctx context.Context, code string) (*Coupon, error)
	ActiveCoupons(ctx context.Context, userID string) ([]Coupon, error)
}

type WishlistStore interface {
	WishlistProductIDs(ctx context.Context, userID string) ([]string, error)
	AddToWishlist(ctx context.Context, userID, productID string) error
	RemoveFromWishlist(ctx context.Context, userID, productID string) error
}

type RatingStore interface {
	UpsertRating(ctx context.Context, r Rating) error
	RatingStats(ctx context.Context, productID string) (RatingSummary, error)
	RatingsFor(ctx context.Context, productID string) ([]Rating, error)
	SetProductRate(ctx context.Context, productID string, rate int) error
}

type SettingStore interface {
	Setting(ctx context.Context, key string) (*Setting, error)
	PutSetting(ctx context.Context, key, value string) (Setting, error)
}

// TxManager runs fn so that store calls made with the ctx it receives
// commit or roll back together.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Store interface {
	ProductStore
	CartStore
	CouponStore
	WishlistStore
	RatingStore
	SettingStore
	TxManager
}
