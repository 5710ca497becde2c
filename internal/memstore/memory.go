// Package memstore is an in-memory shop.Store for tests and local runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

type state struct {
	products   map[string]shop.Product
	categories map[string]shop.Category // by name
	carts      map[string]shop.Cart     // by user
	coupons    map[string]shop.Coupon
	wishlists  map[string]map[string]struct{}
	ratings    map[string]shop.Rating // by user|product
	settings   map[string]shop.Setting
}

func (s state) clone() state {
	out := state{
		products:   make(map[string]shop.Product, len(s.products)),
		categories: make(map[string]shop.Category, len(s.categories)),
		carts:      make(map[string]shop.Cart, len(s.carts)),
		coupons:    make(map[string]shop.Coupon, len(s.coupons)),
		wishlists:  make(map[string]map[string]struct{}, len(s.wishlists)),
		ratings:    make(map[string]shop.Rating, len(s.ratings)),
		settings:   make(map[string]shop.Setting, len(s.settings)),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	for k, v := range s.carts {
		v.Lines = append([]shop.CartLine(nil), v.Lines...)
		out.carts[k] = v
	}
	for k, v := range s.coupons {
		out.coupons[k] = v
	}
	for k, v := range s.wishlists {
		m := make(map[string]struct{}, len(v))
		for id := range v {
			m[id] = struct{}{}
		}
		out.wishlists[k] = m
	}
	for k, v := range s.ratings {
		out.ratings[k] = v
	}
	for k, v := range s.settings {
		out.settings[k] = v
	}
	return out
}

// Store keeps everything in maps behind one RWMutex.
type Store struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

var _ shop.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: state{
			products:   make(map[string]shop.Product),
			categories: make(map[string]shop.Category),
			carts:      make(map[string]shop.Cart),
			coupons:    make(map[string]shop.Coupon),
			wishlists:  make(map[string]map[string]struct{}),
			ratings:    make(map[string]shop.Rating),
			settings:   make(map[string]shop.Setting),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// transaction-aware locking helpers
type txKey struct{}

func inTx(ctx context.Context) bool {
	b, _ := ctx.Value(txKey{}).(bool)
	return b
}

func (m *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

// WithTransaction holds the write lock for fn and restores the previous
// state if fn fails.
func (m *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// ---- seeding ----

// AddProduct stores p, assigning an ID and CreatedAt when missing.
func (m *Store) AddProduct(p shop.Product) shop.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	if p.CategoryName != "" {
		c, ok := m.st.categories[p.CategoryName]
		if !ok {
			c = shop.Category{ID: p.CategoryID, Name: p.CategoryName}
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			m.st.categories[c.Name] = c
		}
		p.CategoryID = c.ID
	}
	m.st.products[p.ID] = p
	return p
}

// AddCategory stores c, assigning an ID when missing. Products added with
// an unknown category name register it themselves.
func (m *Store) AddCategory(c shop.Category) shop.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.st.categories[c.Name] = c
	return c
}

func (m *Store) AddCoupon(c shop.Coupon) shop.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.st.coupons[c.ID] = c
	return c
}

// Coupons returns every stored coupon, for assertions.
func (m *Store) Coupons() []shop.Coupon {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]shop.Coupon, 0, len(m.st.coupons))
	for _, c := range m.st.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ---- products ----

func (m *Store) FindProducts(ctx context.Context, q shop.ProductQuery) ([]shop.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.rlock(ctx)
	defer m.runlock(ctx)
	matched := m.matching(q.Where)
	sort.SliceStable(matched, func(i, j int) bool { return q.Order.Less(matched[i], matched[j]) })
	return window(matched, q.Offset, q.Limit), nil
}

func (m *Store) CountProducts(ctx context.Context, where shop.ProductPredicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.rlock(ctx)
	defer m.runlock(ctx)
	return len(m.matching(where)), nil
}

func (m *Store) ProductByID(ctx context.Context, id string) (*shop.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.st.products[id]
	if !ok {
		return nil, shop.ErrNotFound
	}
	return &p, nil
}

func (m *Store) ProductsByIDs(ctx context.Context, ids []string) ([]shop.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]shop.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Store) TopRated(ctx context.Context, where shop.ProductPredicate, offset, limit int) ([]shop.RatingSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.rlock(ctx)
	defer m.runlock(ctx)
	sums := make(map[string]*shop.RatingSummary)
	totals := make(map[string]int)
	for _, r := range m.st.ratings {
		p, ok := m.st.products[r.ProductID]
		if !ok || !where.Matches(p) {
			continue
		}
		s, ok := sums[r.ProductID]
		if !ok {
			s = &shop.RatingSummary{ProductID: r.ProductID}
			sums[r.ProductID] = s
		}
		s.Count++
		totals[r.ProductID] += r.Rate
	}
	out := make([]shop.RatingSummary, 0, len(sums))
	for id, s := range sums {
		s.Average = float64(totals[id]) / float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return out[i].ProductID < out[j].ProductID
	})
	return window(out, offset, limit), nil
}

func (m *Store) Categories(ctx context.Context) ([]shop.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]shop.Category, 0, len(m.st.categories))
	for _, c := range m.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) matching(where shop.ProductPredicate) []shop.Product {
	out := make([]shop.Product, 0, len(m.st.products))
	for _, p := range m.st.products {
		if where.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func window[T any](in []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return []T{}
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return in[offset:end]
}

// ---- carts ----

func (m *Store) CartByUser(ctx context.Context, userID string) (*shop.Cart, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	c, ok := m.st.carts[userID]
	if !ok {
		return nil, shop.ErrNotFound
	}
	c.Lines = append([]shop.CartLine(nil), c.Lines...)
	return &c, nil
}

func (m *Store) CreateCart(ctx context.Context, userID string) (*shop.Cart, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if c, ok := m.st.carts[userID]; ok {
		return &c, nil
	}
	c := shop.Cart{ID: uuid.NewString(), UserID: userID}
	m.st.carts[userID] = c
	return &c, nil
}

func (m *Store) cartByID(cartID string) (string, shop.Cart, bool) {
	for user, c := range m.st.carts {
		if c.ID == cartID {
			return user, c, true
		}
	}
	return "", shop.Cart{}, false
}

func (m *Store) SaveLine(ctx context.Context, line shop.CartLine) (shop.CartLine, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	user, c, ok := m.cartByID(line.CartID)
	if !ok {
		return shop.CartLine{}, shop.ErrNotFound
	}
	if existing := c.Line(line.ProductID); existing != nil {
		line.ID = existing.ID
		*existing = line
	} else {
		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		c.Lines = append(c.Lines, line)
	}
	m.st.carts[user] = c
	return line, nil
}

func (m *Store) DeleteLine(ctx context.Context, cartID, productID string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	user, c, ok := m.cartByID(cartID)
	if !ok {
		return shop.ErrNotFound
	}
	for i, l := range c.Lines {
		if l.ProductID == productID {
			c.Lines = append(c.Lines[:i:i], c.Lines[i+1:]...)
			m.st.carts[user] = c
			return nil
		}
	}
	return shop.ErrNotFound
}

func (m *Store) ClearCart(ctx context.Context, cartID string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	user, c, ok := m.cartByID(cartID)
	if !ok {
		return shop.ErrNotFound
	}
	c.Lines = nil
	m.st.carts[user] = c
	return nil
}

// ---- coupons ----

func (m *Store) PurgeExpiredCoupons(ctx context.Context, userID string, now time.Time) (int, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	n := 0
	for id, c := range m.st.coupons {
		if c.UserID == userID && c.ExpiresAt.Before(now) {
			delete(m.st.coupons, id)
			n++
		}
	}
	return n, nil
}

func (m *Store) CouponByCode(ctx context.Context, code string) (*shop.Coupon, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, c := range m.st.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, shop.ErrNotFound
}

func (m *Store) ActiveCoupons(ctx context.Context, userID string) ([]shop.Coupon, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]shop.Coupon, 0)
	for _, c := range m.st.coupons {
		if c.UserID == userID && c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// ---- wishlist ----

func (m *Store) WishlistProductIDs(ctx context.Context, userID string) ([]string, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]string, 0, len(m.st.wishlists[userID]))
	for id := range m.st.wishlists[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Store) AddToWishlist(ctx context.Context, userID, productID string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.products[productID]; !ok {
		return shop.ErrNotFound
	}
	w, ok := m.st.wishlists[userID]
	if !ok {
		w = make(map[string]struct{})
		m.st.wishlists[userID] = w
	}
	w[productID] = struct{}{}
	return nil
}

func (m *Store) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	w := m.st.wishlists[userID]
	if _, ok := w[productID]; !ok {
		return shop.ErrNotFound
	}
	delete(w, productID)
	return nil
}

// ---- ratings ----

func ratingKey(userID, productID string) string { return userID + "|" + productID }

func (m *Store) UpsertRating(ctx context.Context, r shop.Rating) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.products[r.ProductID]; !ok {
		return shop.ErrNotFound
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	m.st.ratings[ratingKey(r.UserID, r.ProductID)] = r
	return nil
}

func (m *Store) RatingStats(ctx context.Context, productID string) (shop.RatingSummary, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	s := shop.RatingSummary{ProductID: productID}
	total := 0
	for _, r := range m.st.ratings {
		if r.ProductID == productID {
			s.Count++
			total += r.Rate
		}
	}
	if s.Count > 0 {
		s.Average = float64(total) / float64(s.Count)
	}
	return s, nil
}

func (m *Store) RatingsFor(ctx context.Context, productID string) ([]shop.Rating, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]shop.Rating, 0)
	for _, r := range m.st.ratings {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) SetProductRate(ctx context.Context, productID string, rate int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.st.products[productID]
	if !ok {
		return shop.ErrNotFound
	}
	p.Rate = rate
	m.st.products[productID] = p
	return nil
}

// ---- settings ----

func (m *Store) Setting(ctx context.Context, key string) (*shop.Setting, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	s, ok := m.st.settings[key]
	if !ok {
		return nil, shop.ErrNotFound
	}
	return &s, nil
}

func (m *Store) PutSetting(ctx context.Context, key, value string) (shop.Setting, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	s := shop.Setting{Key: key, Value: value, UpdatedAt: m.now()}
	m.st.settings[key] = s
	return s, nil
}

// SettingCount is the number of setting rows, for assertions.
func (m *Store) SettingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.settings)
}
