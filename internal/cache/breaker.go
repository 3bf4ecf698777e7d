package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

// ErrCacheUnavailable is returned while the breaker is open
var ErrCacheUnavailable = errors.New("coverage cache unavailable")

// BreakerSettings configures the circuit breaker around a cache backend
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
}

type breakerCache struct {
	next CoverageCache
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerCache trips after FailureThreshold consecutive backend errors and
// fails fast with ErrCacheUnavailable until Timeout has passed.
func NewBreakerCache(next CoverageCache, s BreakerSettings) CoverageCache {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = defaultBreakerFailures
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultBreakerTimeout
	}

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache circuit breaker state changed")
		},
		// a cancelled caller says nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &breakerCache{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerCache) execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return v, err
}

type cacheHit struct {
	result *domain.StockCoverageResult
	ok     bool
}

func (b *breakerCache) Get(ctx context.Context, sku string) (*domain.StockCoverageResult, bool, error) {
	v, err := b.execute(func() (any, error) {
		result, ok, err := b.next.Get(ctx, sku)
		return cacheHit{result: result, ok: ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	hit := v.(cacheHit)
	return hit.result, hit.ok, nil
}

func (b *breakerCache) Set(ctx context.Context, sku string, result *domain.StockCoverageResult, ttl time.Duration) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Set(ctx, sku, result, ttl)
	})
	return err
}

func (b *breakerCache) Invalidate(ctx context.Context, sku string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Invalidate(ctx, sku)
	})
	return err
}

func (b *breakerCache) InvalidateAll(ctx context.Context) (int, error) {
	v, err := b.execute(func() (any, error) {
		return b.next.InvalidateAll(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
