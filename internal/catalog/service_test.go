package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type memCache struct {
	data   map[string][]byte
	reads  int
	writes int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	c.reads++
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (c *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.writes++
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) Categories(context.Context) ([]shop.Category, error) {
	return nil, errors.New("connection reset by peer")
}

func (brokenStore) FindProducts(context.Context, shop.ProductQuery) ([]shop.Product, error) {
	return nil, errors.New("connection reset by peer")
}

func setup(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	offer := decimal.NewFromInt(12)
	st.AddProduct(shop.Product{ID: "P1", Name: "Runner", CategoryName: "shoes", Price: decimal.NewFromInt(40), CreatedAt: base})
	st.AddProduct(shop.Product{ID: "P2", Name: "Tote", CategoryName: "bags", Price: decimal.NewFromInt(25), CreatedAt: base.Add(time.Hour)})
	st.AddProduct(shop.Product{ID: "P3", Name: "Sandal", CategoryName: "shoes", Price: decimal.NewFromInt(15), Offer: &offer, CreatedAt: base.Add(2 * time.Hour)})
	svc := &Service{
		Store:         st,
		Log:           zap.NewNop(),
		Timeout:       time.Second,
		PageSize:      6,
		AdminPageSize: 10,
	}
	return svc, st
}

func ids(ps []shop.AnnotatedProduct) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestBrowseAnonymousLatest(t *testing.T) {
	svc, _ := setup(t)
	page, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{})
	if err != nil {
		t.Fatal(err)
	}
	got := ids(page.Products)
	if len(got) != 3 || got[0] != "P3" || got[2] != "P1" {
		t.Fatalf("order: %v", got)
	}
	for _, p := range page.Products {
		if p.InCart || p.CartQuantity != 0 || p.InWishlist {
			t.Fatalf("anonymous flags set on %s", p.ID)
		}
	}
	if page.Pagination.Total != 3 || page.Pagination.TotalPages != 1 || page.Pagination.CurrentPage != 1 {
		t.Fatalf("pagination: %+v", page.Pagination)
	}
}

func TestBrowseFilterAndPaging(t *testing.T) {
	svc, _ := setup(t)
	page, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{
		Categories: []string{"shoes"},
		Sort:       shop.SortPriceHigh,
		PageSize:   1,
		Page:       2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Products); len(got) != 1 || got[0] != "P3" {
		t.Fatalf("page 2: %v", got)
	}
	if page.Pagination.Total != 2 || page.Pagination.TotalPages != 2 {
		t.Fatalf("pagination: %+v", page.Pagination)
	}

	page, _ = svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{Page: 9})
	if len(page.Products) != 0 || page.Pagination.CurrentPage != 9 {
		t.Fatalf("past the end: %+v", page)
	}
}

func TestBrowseByRating(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	for _, r := range []shop.Rating{
		{UserID: "a", ProductID: "P1", Rate: 4},
		{UserID: "b", ProductID: "P1", Rate: 4},
		{UserID: "a", ProductID: "P3", Rate: 5},
	} {
		if err := st.UpsertRating(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	page, err := svc.Browse(ctx, shop.Viewer{}, shop.FilterRequest{Sort: shop.SortRating})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Products); len(got) != 2 || got[0] != "P3" || got[1] != "P1" {
		t.Fatalf("want [P3 P1], got %v", got)
	}
	if page.Pagination.Total != 3 {
		t.Fatalf("total counts every matching product: %+v", page.Pagination)
	}
}

func TestBrowseByRatingPagesThroughRanking(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	for _, r := range []shop.Rating{
		{UserID: "a", ProductID: "P1", Rate: 4},
		{UserID: "b", ProductID: "P1", Rate: 5},
		{UserID: "a", ProductID: "P2", Rate: 3},
		{UserID: "a", ProductID: "P3", Rate: 5},
	} {
		if err := st.UpsertRating(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	page, err := svc.Browse(ctx, shop.Viewer{}, shop.FilterRequest{Sort: shop.SortRating, PageSize: 2, Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Products); len(got) != 2 || got[0] != "P3" || got[1] != "P1" {
		t.Fatalf("page 1: want [P3 P1], got %v", got)
	}
	if page.Pagination.TotalPages != 2 {
		t.Fatalf("pagination: %+v", page.Pagination)
	}

	page, err = svc.Browse(ctx, shop.Viewer{}, shop.FilterRequest{Sort: shop.SortRating, PageSize: 2, Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Products); len(got) != 1 || got[0] != "P2" {
		t.Fatalf("page 2: want [P2], got %v", got)
	}
}

func TestBrowseHugePageIsEmpty(t *testing.T) {
	svc, _ := setup(t)
	for _, sort := range []shop.SortKey{shop.SortLatest, shop.SortRating} {
		page, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{Sort: sort, Page: 1 << 62, PageSize: 4})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Products) != 0 || page.Pagination.Total != 3 || page.Pagination.CurrentPage != 1<<62 {
			t.Fatalf("%s: want empty page past the end, got %v %+v", sort, ids(page.Products), page.Pagination)
		}
	}
}

func TestBrowseAnnotatesViewer(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	c, _ := st.CreateCart(ctx, "u1")
	_, _ = st.SaveLine(ctx, shop.CartLine{CartID: c.ID, ProductID: "P2", Quantity: 2})
	_ = st.AddToWishlist(ctx, "u1", "P1")

	page, err := svc.Browse(ctx, shop.Viewer{UserID: "u1", Role: shop.RoleCustomer}, shop.FilterRequest{})
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]shop.AnnotatedProduct{}
	for _, p := range page.Products {
		byID[p.ID] = p
	}
	if !byID["P2"].InCart || byID["P2"].CartQuantity != 2 {
		t.Fatalf("P2: %+v", byID["P2"])
	}
	if !byID["P1"].InWishlist || byID["P1"].InCart {
		t.Fatalf("P1: %+v", byID["P1"])
	}
	if byID["P3"].InCart || byID["P3"].InWishlist {
		t.Fatalf("P3: %+v", byID["P3"])
	}
}

func TestBrowseRejectsBadInputWithEmptyPage(t *testing.T) {
	svc, _ := setup(t)
	page, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{Sort: "bestselling"})
	if !errors.Is(err, shop.ErrInvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
	if page.Products == nil || len(page.Products) != 0 || page.Pagination.TotalPages != 0 {
		t.Fatalf("want empty page, got %+v", page)
	}
}

func TestBrowseStoreFailureIsUnavailable(t *testing.T) {
	svc, st := setup(t)
	svc.Store = brokenStore{st}
	page, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{})
	if !errors.Is(err, shop.ErrStoreUnavailable) {
		t.Fatalf("want StoreUnavailable, got %v", err)
	}
	if len(page.Products) != 0 || page.Pagination.Total != 0 {
		t.Fatalf("want empty page, got %+v", page)
	}
}

func TestBrowseUsesCache(t *testing.T) {
	svc, st := setup(t)
	cache := newMemCache()
	svc.Cache = cache
	svc.CacheTTL = time.Minute

	first, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if cache.writes != 1 {
		t.Fatalf("writes: %d", cache.writes)
	}
	// The store is now broken; a cache hit must not touch it.
	svc.Store = brokenStore{st}
	second, err := svc.Browse(context.Background(), shop.Viewer{}, shop.FilterRequest{})
	if err != nil {
		t.Fatalf("cache hit should not reach the store: %v", err)
	}
	if len(second.Products) != len(first.Products) || second.Pagination.Total != first.Pagination.Total {
		t.Fatalf("cached page differs: %+v vs %+v", second, first)
	}
}

func TestProductDetail(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	_ = st.AddToWishlist(ctx, "u1", "P3")

	p, err := svc.Product(ctx, shop.Viewer{UserID: "u1"}, "P3")
	if err != nil {
		t.Fatal(err)
	}
	if !p.InWishlist || !shop.EffectiveUnitPrice(p.Product).Equal(decimal.NewFromInt(12)) {
		t.Fatalf("got %+v", p)
	}
	if _, err := svc.Product(ctx, shop.Viewer{}, "nope"); !errors.Is(err, shop.ErrNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestRateUpdatesRoundedAverage(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	if _, err := svc.Rate(ctx, shop.Viewer{UserID: "a"}, "P1", 4, "ok"); err != nil {
		t.Fatal(err)
	}
	sum, err := svc.Rate(ctx, shop.Viewer{UserID: "b"}, "P1", 5, "great")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 2 || sum.Average != 4.5 {
		t.Fatalf("summary: %+v", sum)
	}
	p, _ := st.ProductByID(ctx, "P1")
	if p.Rate != 5 {
		t.Fatalf("rounded rate: %d", p.Rate)
	}

	list, err := svc.Ratings(ctx, shop.Viewer{UserID: "b"}, "P1")
	if err != nil || list.Count != 2 || !list.ViewerHasRated {
		t.Fatalf("ratings: %+v %v", list, err)
	}
}

func TestRateValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	if _, err := svc.Rate(ctx, shop.Viewer{UserID: "a"}, "P1", 6, ""); !errors.Is(err, shop.ErrInvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
	if _, err := svc.Rate(ctx, shop.Viewer{}, "P1", 3, ""); !errors.Is(err, shop.ErrForbidden) {
		t.Fatalf("want Forbidden, got %v", err)
	}
	if _, err := svc.Rate(ctx, shop.Viewer{UserID: "a"}, "nope", 3, ""); !errors.Is(err, shop.ErrNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestWishlist(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	v := shop.Viewer{UserID: "u1"}
	if err := svc.AddToWishlist(ctx, v, "P2"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveFromWishlist(ctx, v, "P2"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveFromWishlist(ctx, v, "P2"); !errors.Is(err, shop.ErrNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
	if err := svc.AddToWishlist(ctx, shop.Viewer{}, "P2"); !errors.Is(err, shop.ErrForbidden) {
		t.Fatalf("want Forbidden, got %v", err)
	}
}

func TestAdminProducts(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	if _, err := svc.AdminProducts(ctx, shop.Viewer{UserID: "u1", Role: shop.RoleCustomer}, 1); !errors.Is(err, shop.ErrForbidden) {
		t.Fatalf("want Forbidden, got %v", err)
	}
	page, err := svc.AdminProducts(ctx, shop.Viewer{UserID: "m1", Role: shop.RoleManager}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Products) != 3 || page.Pagination.PageSize != 10 || page.Pagination.CurrentPage != 1 {
		t.Fatalf("got %+v", page.Pagination)
	}
}

func TestCategories(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	cache := newMemCache()
	svc.Cache = cache
	svc.CacheTTL = time.Minute

	cs, err := svc.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs[0].Name != "bags" || cs[1].Name != "shoes" {
		t.Fatalf("categories: %+v", cs)
	}

	svc.Store = brokenStore{st}
	if cached, err := svc.Categories(ctx); err != nil || len(cached) != 2 {
		t.Fatalf("cache hit: %+v %v", cached, err)
	}
	svc.Cache = nil
	if _, err := svc.Categories(ctx); !errors.Is(err, shop.ErrStoreUnavailable) {
		t.Fatalf("want StoreUnavailable, got %v", err)
	}
}

func TestBrowseFeaturedAndOnOffer(t *testing.T) {
	svc, st := setup(t)
	st.AddProduct(shop.Product{ID: "P4", Name: "Belt", CategoryName: "bags", Price: decimal.NewFromInt(9), Featured: true})
	ctx := context.Background()

	page, err := svc.Browse(ctx, shop.Viewer{}, shop.FilterRequest{Featured: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(page.Products); len(got) != 1 || got[0] != "P4" {
		t.Fatalf("featured: %v", got)
	}
	page, _ = svc.Browse(ctx, shop.Viewer{}, shop.FilterRequest{OnOffer: true})
	if got := ids(page.Products); len(got) != 1 || got[0] != "P3" {
		t.Fatalf("on offer: %v", got)
	}
}
