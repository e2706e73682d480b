// Package cache keeps the latest analytics report per symbol in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
)

const keyPrefix = "turbobook:report:"

type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Dial connects to addr and pings it once.
func Dial(ctx context.Context, addr string, db int, ttl time.Duration) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewReportCache(client, ttl), nil
}

func key(symbol string) string { return keyPrefix + symbol }

func (c *ReportCache) Name() string { return "redis" }

// Publish stores r as the latest report for its symbol.
func (c *ReportCache) Publish(ctx context.Context, r analyzer.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.Symbol, err)
	}
	if err := c.client.Set(ctx, key(r.Symbol), string(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report %s: %w", r.Symbol, err)
	}
	return nil
}

// Latest returns the cached report for symbol; found is false on a miss.
func (c *ReportCache) Latest(ctx context.Context, symbol string) (r analyzer.Report, found bool, err error) {
	raw, err := c.client.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return r, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("read cached report %s: %w", symbol, err)
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, false, fmt.Errorf("decode cached report %s: %w", symbol, err)
	}
	return r, true, nil
}

func (c *ReportCache) Close() error { return c.client.Close() }
