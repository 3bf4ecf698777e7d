package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/config"
	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	coverageKeyPrefix     = "coverage:"
	coverageScanBatchSize = 100
)

// Cache backends
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// CoverageCache stores the latest StockCoverageResult per SKU.
// A missing or expired entry is reported as (nil, false, nil).
type CoverageCache interface {
	Get(ctx context.Context, sku string) (*domain.StockCoverageResult, bool, error)
	Set(ctx context.Context, sku string, result *domain.StockCoverageResult, ttl time.Duration) error
	Invalidate(ctx context.Context, sku string) error
	InvalidateAll(ctx context.Context) (int, error)
}

type redisCoverageCache struct {
	client *redis.Client
}

type noopCoverageCache struct{}

// NewCoverageCache builds the backend selected by cfg.Backend. A redis backend
// is wrapped in a circuit breaker so an unhealthy server degrades to misses.
func NewCoverageCache(cfg config.CacheConfig) (CoverageCache, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendRedis:
		client, err := newRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewBreakerCache(NewRedisCoverageCache(client), BreakerSettings{
			Name:             "coverage-cache",
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerTimeout,
		}), nil
	case BackendMemory, "":
		return NewMemoryCoverageCache(), nil
	case BackendNone, "noop":
		return NewNoopCoverageCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NewRedisCoverageCache wraps an existing client
func NewRedisCoverageCache(client *redis.Client) CoverageCache {
	return &redisCoverageCache{client: client}
}

func NewNoopCoverageCache() CoverageCache {
	return &noopCoverageCache{}
}

func (c *redisCoverageCache) Get(ctx context.Context, sku string) (*domain.StockCoverageResult, bool, error) {
	payload, err := c.client.Get(ctx, coverageKey(sku)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.StockCoverageResult
	if err := json.Unmarshal(payload, &result); err != nil {
		// a corrupt entry is dropped and treated as a miss
		log.Warn().Err(err).Str("sku", sku).Msg("discarding undecodable coverage cache entry")
		_ = c.client.Del(ctx, coverageKey(sku)).Err()
		return nil, false, nil
	}

	return &result, true, nil
}

func (c *redisCoverageCache) Set(ctx context.Context, sku string, result *domain.StockCoverageResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode coverage cache: %w", err)
	}

	if err := c.client.Set(ctx, coverageKey(sku), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisCoverageCache) Invalidate(ctx context.Context, sku string) error {
	if err := c.client.Del(ctx, coverageKey(sku)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisCoverageCache) InvalidateAll(ctx context.Context) (int, error) {
	return deleteKeysWithPrefix(ctx, c.client, coverageKeyPrefix, coverageScanBatchSize)
}

func (n *noopCoverageCache) Get(ctx context.Context, sku string) (*domain.StockCoverageResult, bool, error) {
	return nil, false, nil
}

func (n *noopCoverageCache) Set(ctx context.Context, sku string, result *domain.StockCoverageResult, ttl time.Duration) error {
	return nil
}

func (n *noopCoverageCache) Invalidate(ctx context.Context, sku string) error {
	return nil
}

func (n *noopCoverageCache) InvalidateAll(ctx context.Context) (int, error) {
	return 0, nil
}

func coverageKey(sku string) string {
	return coverageKeyPrefix + strings.TrimSpace(sku)
}
