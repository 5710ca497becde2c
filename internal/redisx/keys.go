package redisx

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// Catalog page cache: catalog:page:{sha1(query)} -> {"products": [...], "total": n}
	KeyCatalogPage = "catalog:page:%s"

	// Category list cache: JSON array of categories ordered by name
	KeyCategories = "catalog:categories"

	// Cached setting value: setting:{key} -> raw value
	KeySetting = "setting:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Most-carted leaderboard: zset product_id -> units added
	KeyMostCarted = "analytics:most_carted"
)

var (
	TTLSetting = 10 * time.Minute
	TTLDedup   = 48 * time.Hour
)

// CatalogPageKey derives a stable cache key from any JSON-encodable query.
func CatalogPageKey(q any) string {
	b, err := json.Marshal(q)
	if err != nil {
		b = []byte(fmt.Sprint(q))
	}
	sum := sha1.Sum(b)
	return fmt.Sprintf(KeyCatalogPage, hex.EncodeToString(sum[:]))
}

func SettingKey(key string) string { return fmt.Sprintf(KeySetting, key) }

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }
