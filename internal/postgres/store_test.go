package postgres

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

func TestWhereClause(t *testing.T) {
	min := decimal.NewFromInt(10)
	max := decimal.NewFromInt(50)

	clause, args := whereClause(shop.ProductPredicate{}, nil)
	if clause != "TRUE" || len(args) != 0 {
		t.Fatalf("empty predicate: %q %v", clause, args)
	}

	clause, args = whereClause(shop.ProductPredicate{
		Categories: []string{"bags", "shoes"},
		MinPrice:   &min,
		MaxPrice:   &max,
	}, nil)
	want := "TRUE AND c.name = ANY($1) AND p.price >= $2 AND p.price <= $3"
	if clause != want {
		t.Fatalf("want %q, got %q", want, clause)
	}
	if len(args) != 3 {
		t.Fatalf("args: %v", args)
	}

	clause, args = whereClause(shop.ProductPredicate{Featured: true, OnOffer: true}, nil)
	if clause != "TRUE AND p.featured AND COALESCE(p.offer, 0) <> 0" || len(args) != 0 {
		t.Fatalf("flags: %q %v", clause, args)
	}

	clause, args = whereClause(shop.ProductPredicate{MaxPrice: &max}, []any{"x"})
	if clause != "TRUE AND p.price <= $2" || len(args) != 2 {
		t.Fatalf("offset placeholders: %q %v", clause, args)
	}
}

func TestOrderClause(t *testing.T) {
	cases := map[shop.Ordering]string{
		{Field: shop.OrderCreatedAt, Desc: true}: "p.created_at DESC, p.id",
		{Field: shop.OrderCreatedAt}:             "p.created_at ASC, p.id",
		{Field: shop.OrderPrice, Desc: true}:     "p.price DESC, p.id",
		{Field: shop.OrderOffer}:                 "p.offer ASC NULLS LAST, p.id",
	}
	for o, want := range cases {
		if got := orderClause(o); got != want {
			t.Fatalf("%+v: want %q, got %q", o, want, got)
		}
	}
}

func TestCartByUserSQLLocksInsideTx(t *testing.T) {
	if got := cartByUserSQL(false); strings.Contains(got, "FOR UPDATE") {
		t.Fatalf("plain read must not lock: %q", got)
	}
	if got := cartByUserSQL(true); !strings.HasSuffix(got, " FOR UPDATE") {
		t.Fatalf("tx read must lock the cart row: %q", got)
	}
}
