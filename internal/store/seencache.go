package store

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"jobharvest/internal/config"
)

const seenTTL = 14 * 24 * time.Hour

// SeenCache is an optional redis set of dedupe keys per vendor, consulted
// before detail fetches. When redis is down every lookup reports "unseen"
// and the DB existence check decides; the cache never blocks a run.
type SeenCache struct {
	client *redis.Client

	warnedUnavailable atomic.Bool
}

func NewSeenCache(cfg config.RedisConfig) *SeenCache {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(cfg.Port)
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("cache:unavailable err=%v", err)
		_ = client.Close()
		return &SeenCache{client: nil}
	}
	return &SeenCache{client: client}
}

func (c *SeenCache) isUnavailable() bool {
	return c == nil || c.client == nil
}

func (c *SeenCache) warnUnavailableOnce(err error) {
	if c == nil {
		return
	}
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		log.Printf("cache:unavailable bypassing err=%v", err)
	}
}

func seenKey(vendor string) string {
	return "seen:" + strings.ToLower(strings.TrimSpace(vendor))
}

// Seen reports which of keys are already in the vendor's seen set. Errors
// degrade to "none seen".
func (c *SeenCache) Seen(ctx context.Context, vendor string, keys []string) map[string]struct{} {
	out := map[string]struct{}{}
	if c.isUnavailable() || len(keys) == 0 {
		return out
	}
	members := make([]any, 0, len(keys))
	for _, k := range keys {
		members = append(members, k)
	}
	hits, err := c.client.SMIsMember(ctx, seenKey(vendor), members...).Result()
	if err != nil {
		c.warnUnavailableOnce(err)
		return out
	}
	for i, hit := range hits {
		if hit && i < len(keys) {
			out[keys[i]] = struct{}{}
		}
	}
	return out
}

// MarkSeen records keys after a successful upsert. Best effort.
func (c *SeenCache) MarkSeen(ctx context.Context, vendor string, keys []string) {
	if c.isUnavailable() || len(keys) == 0 {
		return
	}
	members := make([]any, 0, len(keys))
	for _, k := range keys {
		members = append(members, k)
	}
	key := seenKey(vendor)
	if err := c.client.SAdd(ctx, key, members...).Err(); err != nil {
		c.warnUnavailableOnce(err)
		return
	}
	_ = c.client.Expire(ctx, key, seenTTL).Err()
}

func (c *SeenCache) Close() {
	if c.isUnavailable() {
		return
	}
	_ = c.client.Close()
}
