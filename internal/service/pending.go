package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// pendingInvalidations remembers SKUs whose cache entry could not be dropped
// after new facts were recorded. A pending SKU is never served from cache
// until the delete goes through or a fresh result overwrites the entry.
type pendingInvalidations struct {
	mu   sync.Mutex
	skus map[string]struct{}
}

func newPendingInvalidations() *pendingInvalidations {
	return &pendingInvalidations{skus: make(map[string]struct{})}
}

func (p *pendingInvalidations) add(sku string) {
	p.mu.Lock()
	p.skus[sku] = struct{}{}
	p.mu.Unlock()
}

func (p *pendingInvalidations) has(sku string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.skus[sku]
	return ok
}

func (p *pendingInvalidations) remove(sku string) {
	p.mu.Lock()
	delete(p.skus, sku)
	p.mu.Unlock()
}

func (p *pendingInvalidations) reset() {
	p.mu.Lock()
	clear(p.skus)
	p.mu.Unlock()
}

func (p *pendingInvalidations) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.skus)
}

// settlePending retries a deferred invalidation. It reports whether the cache
// may be read for sku.
func (s *ReplenishmentService) settlePending(ctx context.Context, sku string) bool {
	if !s.pending.has(sku) {
		return true
	}
	if err := s.cache.Invalidate(ctx, sku); err != nil {
		log.Debug().Err(err).Str("sku", sku).Msg("coverage: pending invalidation still failing")
		return false
	}
	s.pending.remove(sku)
	log.Info().Str("sku", sku).Msg("coverage: pending invalidation applied")
	return true
}

// PendingInvalidations returns how many SKUs wait for their cache entry to be dropped
func (s *ReplenishmentService) PendingInvalidations() int {
	return s.pending.size()
}
