package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Cache stores JSON values in redis.
type Cache struct{ rdb *redis.Client }

func NewCache(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

// GetJSON decodes key into out. A miss reports false with no error.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Leaderboard counts units per member in a sorted set and remembers
// which events it has already counted.
type Leaderboard struct {
	rdb     *redis.Client
	key     string
	service string
}

func NewLeaderboard(rdb *redis.Client, key, service string) *Leaderboard {
	return &Leaderboard{rdb: rdb, key: key, service: service}
}

// KEYS[1] dedup marker, KEYS[2] sorted set; ARGV increment, member, ttl seconds.
var recordOnce = redis.NewScript(`
if redis.call("SET", KEYS[1], "1", "NX", "EX", ARGV[3]) then
	redis.call("ZINCRBY", KEYS[2], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// Record adds by to member unless eventID was already recorded. The marker
// and the increment are written atomically, so a failed call leaves
// neither behind. It reports whether this call counted the event.
func (l *Leaderboard) Record(ctx context.Context, eventID, member string, by int) (bool, error) {
	keys := []string{DedupKey(l.service, eventID), l.key}
	n, err := recordOnce.Run(ctx, l.rdb, keys, by, member, int(TTLDedup/time.Second)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type Score struct {
	Member string `json:"product_id"`
	Score  int    `json:"units"`
}

func (l *Leaderboard) Top(ctx context.Context, n int) ([]Score, error) {
	zs, err := l.rdb.ZRevRangeWithScores(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Score, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		out = append(out, Score{Member: m, Score: int(z.Score)})
	}
	return out, nil
}
