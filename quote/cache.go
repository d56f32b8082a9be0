package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const DefaultCacheExpiration = 5 * time.Minute

// cacheStore is the subset of *redis.Client used by Cached.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached memoizes quotes from another Provider in Redis. Cache failures are
// logged and fall through to the wrapped provider.
type Cached struct {
	next       Provider
	rdb        cacheStore
	expiration time.Duration
	logger     zerolog.Logger
}

func NewCached(next Provider, rdb cacheStore, expiration time.Duration, logger zerolog.Logger) *Cached {
	if expiration <= 0 {
		expiration = DefaultCacheExpiration
	}
	return &Cached{next: next, rdb: rdb, expiration: expiration, logger: logger}
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("stock:%s:quote", symbol)
}

func (c *Cached) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = Normalize(symbol)
	key := cacheKey(symbol)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var q Quote
		if err := json.Unmarshal([]byte(cached), &q); err == nil {
			return q, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding malformed cached quote")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("quote cache read failed")
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	data, err := json.Marshal(q)
	if err != nil {
		return q, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.expiration).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("quote cache write failed")
	}
	return q, nil
}
