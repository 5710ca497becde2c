// Package catalog serves product listings, product detail, ratings and
// wishlists, annotated for the requesting viewer.
package catalog

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Cache is the read-through page cache. Implemented by *redisx.Cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Service struct {
	Store         shop.Store
	Cache         Cache // optional
	Log           *zap.Logger
	Timeout       time.Duration
	PageSize      int
	AdminPageSize int
	CacheTTL      time.Duration
}

type Page struct {
	Products   []shop.AnnotatedProduct `json:"products"`
	Pagination shop.Pagination         `json:"pagination"`
}

type AdminPage struct {
	Products   []shop.Product  `json:"products"`
	Pagination shop.Pagination `json:"pagination"`
}

type RatingList struct {
	Ratings        []shop.Rating `json:"ratings"`
	Average        float64       `json:"average"`
	Count          int           `json:"count"`
	ViewerHasRated bool          `json:"viewer_has_rated"`
}

// cachedPage is what the page cache holds: the un-annotated window and the
// total for its predicate.
type cachedPage struct {
	Products []shop.Product `json:"products"`
	Total    int            `json:"total"`
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// Browse lists one page of products for req. On failure it still returns an
// empty page alongside the error so callers can render something.
func (s *Service) Browse(ctx context.Context, v shop.Viewer, req shop.FilterRequest) (Page, error) {
	pageSize := s.PageSize
	if req.PageSize > 0 {
		pageSize = req.PageSize
	}
	empty := Page{
		Products:   []shop.AnnotatedProduct{},
		Pagination: shop.Paginate(0, req.Page, pageSize),
	}

	q, err := shop.BuildQuery(req, s.PageSize)
	if err != nil {
		return empty, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		page cachedPage
		vc   *shop.ViewerContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.window(gctx, q)
		return err
	})
	if !v.Anonymous() {
		g.Go(func() error {
			var err error
			vc, err = s.viewerContext(gctx, v)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.Log.Warn("browse failed", zap.String("user_id", v.UserID), zap.Error(err))
		return empty, shop.StoreErr(err)
	}

	return Page{
		Products:   shop.Annotate(page.Products, vc),
		Pagination: shop.Paginate(page.Total, req.Page, q.Limit),
	}, nil
}

// window loads the products for q and the predicate total, going through
// the cache when one is configured.
func (s *Service) window(ctx context.Context, q shop.ProductQuery) (cachedPage, error) {
	key := redisx.CatalogPageKey(q)
	if s.Cache != nil {
		var cp cachedPage
		hit, err := s.Cache.GetJSON(ctx, key, &cp)
		if err != nil {
			s.Log.Warn("catalog cache read", zap.String("key", key), zap.Error(err))
		} else if hit {
			return cp, nil
		}
	}

	var (
		products []shop.Product
		err      error
	)
	if q.ByRating {
		products, err = s.topRated(ctx, q)
	} else {
		products, err = s.Store.FindProducts(ctx, q)
	}
	if err != nil {
		return cachedPage{}, err
	}
	total, err := s.Store.CountProducts(ctx, q.Where)
	if err != nil {
		return cachedPage{}, err
	}

	cp := cachedPage{Products: products, Total: total}
	if s.Cache != nil && s.CacheTTL > 0 {
		if err := s.Cache.SetJSON(ctx, key, cp, s.CacheTTL); err != nil {
			s.Log.Warn("catalog cache write", zap.String("key", key), zap.Error(err))
		}
	}
	return cp, nil
}

func (s *Service) topRated(ctx context.Context, q shop.ProductQuery) ([]shop.Product, error) {
	ranks, err := s.Store.TopRated(ctx, q.Where, q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ranks))
	for i, r := range ranks {
		ids[i] = r.ProductID
	}
	products, err := s.Store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return shop.OrderByRanking(ids, products), nil
}

// viewerContext loads the signed-in viewer's cart and wishlist.
func (s *Service) viewerContext(ctx context.Context, v shop.Viewer) (*shop.ViewerContext, error) {
	if v.Anonymous() {
		return nil, nil
	}
	var (
		cart     *shop.Cart
		wishlist []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.Store.CartByUser(gctx, v.UserID)
		if errors.Is(err, shop.ErrNotFound) {
			return nil
		}
		cart = c
		return err
	})
	g.Go(func() error {
		var err error
		wishlist, err = s.Store.WishlistProductIDs(gctx, v.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shop.NewViewerContext(v.UserID, cart, wishlist), nil
}

// Categories lists the categories shoppers can filter by, through the
// cache when one is configured.
func (s *Service) Categories(ctx context.Context) ([]shop.Category, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.Cache != nil {
		var cs []shop.Category
		hit, err := s.Cache.GetJSON(ctx, redisx.KeyCategories, &cs)
		if err != nil {
			s.Log.Warn("category cache read", zap.Error(err))
		} else if hit {
			return cs, nil
		}
	}
	cs, err := s.Store.Categories(ctx)
	if err != nil {
		return nil, shop.StoreErr(err)
	}
	if s.Cache != nil && s.CacheTTL > 0 {
		if err := s.Cache.SetJSON(ctx, redisx.KeyCategories, cs, s.CacheTTL); err != nil {
			s.Log.Warn("category cache write", zap.Error(err))
		}
	}
	return cs, nil
}

func (s *Service) Product(ctx context.Context, v shop.Viewer, id string) (shop.AnnotatedProduct, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.Store.ProductByID(ctx, id)
	if err != nil {
		return shop.AnnotatedProduct{}, lookupErr(err, "product")
	}
	vc, err := s.viewerContext(ctx, v)
	if err != nil {
		return shop.AnnotatedProduct{}, shop.StoreErr(err)
	}
	return shop.Annotate([]shop.Product{*p}, vc)[0], nil
}

// Rate records v's rating of productID and refreshes the product's rounded
// average.
func (s *Service) Rate(ctx context.Context, v shop.Viewer, productID string, rate int, comment string) (shop.RatingSummary, error) {
	if err := v.RequireUser(); err != nil {
		return shop.RatingSummary{}, err
	}
	if rate < 1 || rate > 5 {
		return shop.RatingSummary{}, shop.InvalidInput("rate must be between 1 and 5")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var sum shop.RatingSummary
	err := s.Store.WithTransaction(ctx, func(ctx context.Context) error {
		err := s.Store.UpsertRating(ctx, shop.Rating{
			UserID:    v.UserID,
			ProductID: productID,
			Rate:      rate,
			Comment:   strings.TrimSpace(comment),
		})
		if err != nil {
			return err
		}
		if sum, err = s.Store.RatingStats(ctx, productID); err != nil {
			return err
		}
		return s.Store.SetProductRate(ctx, productID, int(math.Round(sum.Average)))
	})
	if err != nil {
		return shop.RatingSummary{}, lookupErr(err, "product")
	}
	s.Log.Info("product rated",
		zap.String("user_id", v.UserID),
		zap.String("product_id", productID),
		zap.Int("rate", rate),
		zap.Float64("average", sum.Average))
	return sum, nil
}

func (s *Service) Ratings(ctx context.Context, v shop.Viewer, productID string) (RatingList, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.Store.ProductByID(ctx, productID); err != nil {
		return RatingList{}, lookupErr(err, "product")
	}
	ratings, err := s.Store.RatingsFor(ctx, productID)
	if err != nil {
		return RatingList{}, shop.StoreErr(err)
	}
	out := RatingList{Ratings: ratings, Count: len(ratings)}
	total := 0
	for _, r := range ratings {
		total += r.Rate
		if !v.Anonymous() && r.UserID == v.UserID {
			out.ViewerHasRated = true
		}
	}
	if out.Count > 0 {
		out.Average = float64(total) / float64(out.Count)
	}
	return out, nil
}

func (s *Service) AddToWishlist(ctx context.Context, v shop.Viewer, productID string) error {
	if err := v.RequireUser(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.Store.AddToWishlist(ctx, v.UserID, productID); err != nil {
		return lookupErr(err, "product")
	}
	return nil
}

func (s *Service) RemoveFromWishlist(ctx context.Context, v shop.Viewer, productID string) error {
	if err := v.RequireUser(); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.Store.RemoveFromWishlist(ctx, v.UserID, productID); err != nil {
		return lookupErr(err, "wishlist item")
	}
	return nil
}

// AdminProducts is the back-office listing: newest first, fixed page size,
// no viewer annotation.
func (s *Service) AdminProducts(ctx context.Context, v shop.Viewer, page int) (AdminPage, error) {
	if err := v.RequireSupervisor(); err != nil {
		return AdminPage{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q, err := shop.BuildQuery(shop.FilterRequest{Sort: shop.SortLatest, Page: page}, s.AdminPageSize)
	if err != nil {
		return AdminPage{}, err
	}
	products, err := s.Store.FindProducts(ctx, q)
	if err != nil {
		return AdminPage{}, shop.StoreErr(err)
	}
	total, err := s.Store.CountProducts(ctx, q.Where)
	if err != nil {
		return AdminPage{}, shop.StoreErr(err)
	}
	return AdminPage{Products: products, Pagination: shop.Paginate(total, page, q.Limit)}, nil
}

// lookupErr names what was missing for not-found errors and classifies the
// rest.
func lookupErr(err error, what string) error {
	if errors.Is(err, shop.ErrNotFound) {
		return shop.NotFound(what)
	}
	return shop.StoreErr(err)
}
