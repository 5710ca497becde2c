package redisx

import (
	"strings"
	"testing"
)

func TestCatalogPageKeyStable(t *testing.T) {
	type q struct {
		Categories []string
		Page       int
	}
	a := CatalogPageKey(q{Categories: []string{"bags"}, Page: 1})
	b := CatalogPageKey(q{Categories: []string{"bags"}, Page: 1})
	c := CatalogPageKey(q{Categories: []string{"bags"}, Page: 2})
	if a != b {
		t.Fatalf("same query, different keys: %s %s", a, b)
	}
	if a == c {
		t.Fatal("different pages share a key")
	}
	if !strings.HasPrefix(a, "catalog:page:") {
		t.Fatalf("prefix: %s", a)
	}
}

func TestKeyHelpers(t *testing.T) {
	if got := SettingKey("shipping_threshold"); got != "setting:shipping_threshold" {
		t.Fatalf("got %s", got)
	}
	if got := DedupKey("analytics", "e1"); got != "dedup:analytics:e1" {
		t.Fatalf("got %s", got)
	}
}
