package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Store implements shop.Store on a pgx pool.
type Store struct{ DB *pgxpool.Pool }

var _ shop.Store = (*Store)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// q returns the transaction carried by ctx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.DB
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.ErrNotFound
	}
	return err
}

// ---- products ----

const productColumns = `p.id, p.name, p.description, p.price, p.offer, p.category_id, c.name,
	p.featured, p.rate, p.sizes, p.images, p.created_at,
	(SELECT COUNT(*) FROM ratings r WHERE r.product_id = p.id)`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (shop.Product, error) {
	var (
		p     shop.Product
		offer decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &offer, &p.CategoryID, &p.CategoryName,
		&p.Featured, &p.Rate, &p.Sizes, &p.Images, &p.CreatedAt, &p.RatingCount)
	if err != nil {
		return shop.Product{}, err
	}
	if offer.Valid {
		p.Offer = &offer.Decimal
	}
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]shop.Product, error) {
	defer rows.Close()
	out := make([]shop.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// whereClause renders the predicate with $n placeholders starting after
// len(args).
func whereClause(where shop.ProductPredicate, args []any) (string, []any) {
	conditions := []string{"TRUE"}
	if len(where.Categories) > 0 {
		args = append(args, where.Categories)
		conditions = append(conditions, fmt.Sprintf("c.name = ANY($%d)", len(args)))
	}
	if where.MinPrice != nil {
		args = append(args, *where.MinPrice)
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", len(args)))
	}
	if where.MaxPrice != nil {
		args = append(args, *where.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", len(args)))
	}
	if where.Featured {
		conditions = append(conditions, "p.featured")
	}
	if where.OnOffer {
		conditions = append(conditions, "COALESCE(p.offer, 0) <> 0")
	}
	return strings.Join(conditions, " AND "), args
}

func orderClause(o shop.Ordering) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	switch o.Field {
	case shop.OrderPrice:
		return "p.price " + dir + ", p.id"
	case shop.OrderOffer:
		return "p.offer " + dir + " NULLS LAST, p.id"
	default:
		return "p.created_at " + dir + ", p.id"
	}
}

func (s *Store) FindProducts(ctx context.Context, q shop.ProductQuery) ([]shop.Product, error) {
	where, args := whereClause(q.Where, nil)
	args = append(args, q.Limit, q.Offset)
	sql := `SELECT ` + productColumns + productFrom +
		` WHERE ` + where +
		` ORDER BY ` + orderClause(q.Order) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) CountProducts(ctx context.Context, where shop.ProductPredicate) (int, error) {
	clause, args := whereClause(where, nil)
	var n int
	err := s.q(ctx).QueryRow(ctx, `SELECT COUNT(*)`+productFrom+` WHERE `+clause, args...).Scan(&n)
	return n, err
}

func (s *Store) ProductByID(ctx context.Context, id string) (*shop.Product, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) ProductsByIDs(ctx context.Context, ids []string) ([]shop.Product, error) {
	if len(ids) == 0 {
		return []shop.Product{}, nil
	}
	rows, err := s.q(ctx).Query(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) TopRated(ctx context.Context, where shop.ProductPredicate, offset, limit int) ([]shop.RatingSummary, error) {
	clause, args := whereClause(where, nil)
	args = append(args, limit, offset)
	sql := `SELECT r.product_id, AVG(r.rate)::float8, COUNT(*)
		FROM ratings r
		JOIN products p ON p.id = r.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ` + clause + `
		GROUP BY r.product_id
		ORDER BY AVG(r.rate) DESC, r.product_id` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]shop.RatingSummary, 0)
	for rows.Next() {
		var r shop.RatingSummary
		if err := rows.Scan(&r.ProductID, &r.Average, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Categories(ctx context.Context) ([]shop.Category, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT id, name, image FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]shop.Category, 0)
	for rows.Next() {
		var c shop.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Image); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- carts ----

// cartByUserSQL locks the cart row when the read happens inside a
// transaction, so concurrent line updates for one user serialize.
func cartByUserSQL(locked bool) string {
	sql := `SELECT id, user_id FROM carts WHERE user_id = $1`
	if locked {
		sql += ` FOR UPDATE`
	}
	return sql
}

func (s *Store) CartByUser(ctx context.Context, userID string) (*shop.Cart, error) {
	_, inTx := ctx.Value(txKey{}).(pgx.Tx)
	var c shop.Cart
	err := s.q(ctx).QueryRow(ctx, cartByUserSQL(inTx), userID).Scan(&c.ID, &c.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, cart_id, product_id, quantity, total_price
		FROM cart_lines WHERE cart_id = $1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l shop.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.TotalPrice); err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, l)
	}
	return &c, rows.Err()
}

func (s *Store) CreateCart(ctx context.Context, userID string) (*shop.Cart, error) {
	var c shop.Cart
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO carts(id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id`, uuid.NewString(), userID).Scan(&c.ID, &c.UserID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveLine(ctx context.Context, line shop.CartLine) (shop.CartLine, error) {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO cart_lines(id, cart_id, product_id, quantity, total_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, total_price = EXCLUDED.total_price
		RETURNING id`,
		line.ID, line.CartID, line.ProductID, line.Quantity, line.TotalPrice,
	).Scan(&line.ID)
	return line, err
}

func (s *Store) DeleteLine(ctx context.Context, cartID, productID string) error {
	ct, err := s.q(ctx).Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return shop.ErrNotFound
	}
	return nil
}

func (s *Store) ClearCart(ctx context.Context, cartID string) error {
	_, err := s.q(ctx).Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	return err
}

// ---- coupons ----

const couponColumns = `id, code, discount_percentage, expires_at, is_active, user_id`

func scanCoupon(row pgx.Row) (shop.Coupon, error) {
	var c shop.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.ExpiresAt, &c.Active, &c.UserID)
	return c, err
}

func (s *Store) PurgeExpiredCoupons(ctx context.Context, userID string, now time.Time) (int, error) {
	ct, err := s.q(ctx).Exec(ctx, `DELETE FROM coupons WHERE user_id = $1 AND expires_at < $2`, userID, now)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (s *Store) CouponByCode(ctx context.Context, code string) (*shop.Coupon, error) {
	c, err := scanCoupon(s.q(ctx).QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) ActiveCoupons(ctx context.Context, userID string) ([]shop.Coupon, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT `+couponColumns+` FROM coupons
		WHERE user_id = $1 AND is_active
		ORDER BY expires_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]shop.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- wishlist ----

func (s *Store) WishlistProductIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT product_id FROM wishlist_items WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) AddToWishlist(ctx context.Context, userID, productID string) error {
	ct, err := s.q(ctx).Exec(ctx, `
		INSERT INTO wishlist_items(user_id, product_id)
		SELECT $1, id FROM products WHERE id = $2
		ON CONFLICT DO NOTHING`, userID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := s.q(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shop.ErrNotFound
		}
	}
	return nil
}

func (s *Store) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	ct, err := s.q(ctx).Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return shop.ErrNotFound
	}
	return nil
}

// ---- ratings ----

func (s *Store) UpsertRating(ctx context.Context, r shop.Rating) error {
	ct, err := s.q(ctx).Exec(ctx, `
		INSERT INTO ratings(user_id, product_id, rate, comment)
		SELECT $1, id, $3, $4 FROM products WHERE id = $2
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET rate = EXCLUDED.rate, comment = EXCLUDED.comment, created_at = now()`,
		r.UserID, r.ProductID, r.Rate, r.Comment)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return shop.ErrNotFound
	}
	return nil
}

func (s *Store) RatingStats(ctx context.Context, productID string) (shop.RatingSummary, error) {
	sum := shop.RatingSummary{ProductID: productID}
	err := s.q(ctx).QueryRow(ctx, `
		SELECT COALESCE(AVG(rate), 0)::float8, COUNT(*) FROM ratings WHERE product_id = $1`,
		productID).Scan(&sum.Average, &sum.Count)
	return sum, err
}

func (s *Store) RatingsFor(ctx context.Context, productID string) ([]shop.Rating, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT user_id, product_id, rate, comment, created_at
		FROM ratings WHERE product_id = $1 ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]shop.Rating, 0)
	for rows.Next() {
		var r shop.Rating
		if err := rows.Scan(&r.UserID, &r.ProductID, &r.Rate, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetProductRate(ctx context.Context, productID string, rate int) error {
	ct, err := s.q(ctx).Exec(ctx, `UPDATE products SET rate = $2 WHERE id = $1`, productID, rate)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return shop.ErrNotFound
	}
	return nil
}

// ---- settings ----

func (s *Store) Setting(ctx context.Context, key string) (*shop.Setting, error) {
	var st shop.Setting
	err := s.q(ctx).QueryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&st.Key, &st.Value, &st.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) (shop.Setting, error) {
	var st shop.Setting
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO settings(key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		RETURNING key, value, updated_at`, key, value).Scan(&st.Key, &st.Value, &st.UpdatedAt)
	return st, err
}
