package shop

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortLatest     SortKey = "latest"
	SortPopularity SortKey = "popularity"
	SortRating     SortKey = "rating"
	SortPriceLow   SortKey = "priceLow"
	SortPriceHigh  SortKey = "priceHigh"
	SortTopOffer   SortKey = "topOffer"
)

func (k SortKey) Valid() bool {
	switch k {
	case "", SortLatest, SortPopularity, SortRating, SortPriceLow, SortPriceHigh, SortTopOffer:
		return true
	}
	return false
}

type FilterRequest struct {
	Categories []string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Featured   bool
	OnOffer    bool
	Sort       SortKey
	Page       int
	PageSize   int
}

// ProductPredicate restricts the product set. Zero value matches everything.
type ProductPredicate struct {
	Categories []string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Featured   bool // only featured products
	OnOffer    bool // only products with a non-zero offer
}

// Matches evaluates the predicate in memory.
func (p ProductPredicate) Matches(pr Product) bool {
	if len(p.Categories) > 0 {
		found := false
		for _, c := range p.Categories {
			if c == pr.CategoryName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.MinPrice != nil && pr.Price.LessThan(*p.MinPrice) {
		return false
	}
	if p.MaxPrice != nil && pr.Price.GreaterThan(*p.MaxPrice) {
		return false
	}
	if p.Featured && !pr.Featured {
		return false
	}
	if p.OnOffer && !HasOffer(pr) {
		return false
	}
	return true
}

type OrderField string

const (
	OrderCreatedAt OrderField = "created_at"
	OrderPrice     OrderField = "price"
	OrderOffer     OrderField = "offer"
)

type Ordering struct {
	Field OrderField
	Desc  bool
}

// ProductQuery is what the store executes for a non-rating browse.
type ProductQuery struct {
	Where  ProductPredicate
	Order  Ordering
	Offset int
	Limit  int
	// ByRating switches to the aggregation path: the store ranks products
	// by average rating and Order is ignored.
	ByRating bool
}

// BuildQuery validates req and turns it into a store query. pageSize is
// the fallback when req.PageSize is not positive.
func BuildQuery(req FilterRequest, pageSize int) (ProductQuery, error) {
	if !req.Sort.Valid() {
		return ProductQuery{}, InvalidInput("unknown sort key %q", req.Sort)
	}
	if req.MinPrice != nil && req.MinPrice.IsNegative() {
		return ProductQuery{}, InvalidInput("minimum price must not be negative")
	}
	if req.MaxPrice != nil && req.MaxPrice.IsNegative() {
		return ProductQuery{}, InvalidInput("maximum price must not be negative")
	}
	if req.MinPrice != nil && req.MaxPrice != nil && req.MinPrice.GreaterThan(*req.MaxPrice) {
		return ProductQuery{}, InvalidInput("price range minimum exceeds maximum")
	}
	if req.PageSize > 0 {
		pageSize = req.PageSize
	}
	pg := Paginate(0, req.Page, pageSize)

	q := ProductQuery{
		Where: ProductPredicate{
			Categories: normalizeNames(req.Categories),
			MinPrice:   req.MinPrice,
			MaxPrice:   req.MaxPrice,
			Featured:   req.Featured,
			OnOffer:    req.OnOffer,
		},
		Order:  orderingFor(req.Sort),
		Offset: pg.Offset,
		Limit:  pg.PageSize,
	}
	q.ByRating = req.Sort == SortRating
	return q, nil
}

func orderingFor(k SortKey) Ordering {
	switch k {
	case SortPopularity:
		// Mirrors the storefront's historic mapping: oldest first, not
		// sales-ranked. Kept until the intended metric is confirmed.
		return Ordering{Field: OrderCreatedAt}
	case SortTopOffer:
		return Ordering{Field: OrderOffer}
	case SortPriceLow:
		return Ordering{Field: OrderPrice}
	case SortPriceHigh:
		return Ordering{Field: OrderPrice, Desc: true}
	default:
		return Ordering{Field: OrderCreatedAt, Desc: true}
	}
}

func normalizeNames(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// OrderByRanking reorders products to follow ids. Products absent from
// ids are dropped; ids without a product are skipped.
func OrderByRanking(ids []string, products []Product) []Product {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Less reports whether a sorts before b under o. Ties break on ID so pages
// are stable. Missing offers sort last.
func (o Ordering) Less(a, b Product) bool {
	var c int
	switch o.Field {
	case OrderPrice:
		c = a.Price.Cmp(b.Price)
	case OrderOffer:
		switch {
		case a.Offer == nil && b.Offer == nil:
			c = 0
		case a.Offer == nil:
			return false
		case b.Offer == nil:
			return true
		default:
			c = a.Offer.Cmp(*b.Offer)
		}
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if o.Desc {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}
