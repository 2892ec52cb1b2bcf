package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

type entry struct {
	rate    decimal.Decimal
	expires time.Time
}

// MemoryCache is an in-process rate cache with a time to live.
type MemoryCache struct {
	mu    sync.RWMutex
	rates map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache returns an empty cache. A zero ttl never expires.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{rates: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) get(currency string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.rates[currency]
	if !ok || (!e.expires.IsZero() && c.now().After(e.expires)) {
		return decimal.Zero, false
	}
	return e.rate, true
}

func (c *MemoryCache) put(currency string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{rate: rate}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.rates[currency] = e
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, currency string) (decimal.Decimal, bool, error) {
	r, ok := c.get(normalize(currency))
	return r, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, currency string, rate decimal.Decimal) error {
	c.put(normalize(currency), rate)
	return nil
}

// RedisCache shares rates between processes through Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache returns a cache storing rates under "fin:rate:<CUR>" for ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(currency string) string { return "fin:rate:" + currency }

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, currency string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, redisKey(normalize(currency))).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis get %s: %w", currency, err)
	}
	r, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid cached rate for %s %q: %w", currency, val, err)
	}
	return r, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, currency string, rate decimal.Decimal) error {
	if err := c.client.Set(ctx, redisKey(normalize(currency)), rate.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", currency, err)
	}
	return nil
}
