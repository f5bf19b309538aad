// Package registry holds the set of markets known to the system: a
// read-only, O(1)-lookup index rebuilt wholesale whenever market discovery
// runs again.
package registry

import (
	"sync"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// Registry is an immutable-after-Build index of markets. A rebuild
// replaces the whole index under a single lock swap; it is never mutated
// in place.
type Registry struct {
	mu       sync.RWMutex
	byToken  map[ids.TokenId]domain.Market
	byMarket map[ids.MarketId]domain.Market
	ordered  []domain.Market // insertion order, as passed to Build
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byToken:  make(map[ids.TokenId]domain.Market),
		byMarket: make(map[ids.MarketId]domain.Market),
	}
}

// Build replaces the registry's contents with markets, in the order given.
// Markets that fail Validate are skipped.
func (r *Registry) Build(markets []domain.Market) {
	byToken := make(map[ids.TokenId]domain.Market, len(markets)*2)
	byMarket := make(map[ids.MarketId]domain.Market, len(markets))
	ordered := make([]domain.Market, 0, len(markets))

	for _, m := range markets {
		if err := m.Validate(); err != nil {
			continue
		}
		byMarket[m.MarketID] = m
		for _, tok := range m.TokenIDs() {
			byToken[tok] = m
		}
		ordered = append(ordered, m)
	}

	r.mu.Lock()
	r.byToken = byToken
	r.byMarket = byMarket
	r.ordered = ordered
	r.mu.Unlock()
}

// ByToken looks up the market that owns token.
func (r *Registry) ByToken(token ids.TokenId) (domain.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byToken[token]
	return m, ok
}

// ByMarket looks up a market by its id.
func (r *Registry) ByMarket(id ids.MarketId) (domain.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byMarket[id]
	return m, ok
}

// All returns every market, in insertion order.
func (r *Registry) All() []domain.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Market, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// BinaryMarkets returns every two-outcome market, in insertion order.
func (r *Registry) BinaryMarkets() []domain.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Market, 0, len(r.ordered))
	for _, m := range r.ordered {
		if m.IsBinary() {
			out = append(out, m)
		}
	}
	return out
}

// MultiOutcomeMarkets returns every market with more than two outcomes, in
// insertion order.
func (r *Registry) MultiOutcomeMarkets() []domain.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Market, 0, len(r.ordered))
	for _, m := range r.ordered {
		if !m.IsBinary() {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of markets currently indexed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
