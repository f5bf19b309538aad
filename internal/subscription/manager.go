// Package subscription decides which markets' tokens are actively
// subscribed on the connection pool at any given time, bounded by a
// maximum subscription count and ordered by priority score.
package subscription

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// ErrInternal is returned by ExpandSafe/ContractSafe when the operation
// panicked while holding the lock. Go mutexes are never poisoned by a
// panicking holder the way Rust's std::sync::Mutex is, so the lock is
// released normally either way; this sentinel is the closest idiomatic
// equivalent to the "poisoned lock surfaces an error" requirement.
var ErrInternal = errors.New("subscription: internal panic recovered")

// scoredEntry is one pending market awaiting activation, with an
// insertion sequence number used to break composite-score ties
// deterministically (earlier enqueue wins).
type scoredEntry struct {
	score    domain.MarketScore
	sequence uint64
}

// priorityQueue is a container/heap max-heap ordered by composite score,
// higher score first; ties broken by earlier insertion sequence.
type priorityQueue []scoredEntry

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].score.Composite != pq[j].score.Composite {
		return pq[i].score.Composite > pq[j].score.Composite
	}
	return pq[i].sequence < pq[j].sequence
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(scoredEntry)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Manager tracks which markets/tokens are currently subscribed, a
// priority queue of markets waiting to be activated, and enforces a
// maximum subscription count.
type Manager struct {
	mu sync.RWMutex

	maxSubscriptions int
	activeTokens     []ids.TokenId
	activeMarkets    map[ids.MarketId]struct{}
	marketTokens     map[ids.MarketId][]ids.TokenId
	pending          priorityQueue
	queued           map[ids.MarketId]struct{}
	nextSequence     uint64

	logger *slog.Logger
}

// New constructs a Manager bounded by maxSubscriptions.
func New(maxSubscriptions int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		maxSubscriptions: maxSubscriptions,
		activeMarkets:    make(map[ids.MarketId]struct{}),
		marketTokens:     make(map[ids.MarketId][]ids.TokenId),
		queued:           make(map[ids.MarketId]struct{}),
		logger:           logger,
	}
	heap.Init(&m.pending)
	return m
}

// RegisterMarketTokens defines or replaces a market's token set.
func (m *Manager) RegisterMarketTokens(market ids.MarketId, tokens []ids.TokenId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ids.TokenId, len(tokens))
	copy(cp, tokens)
	m.marketTokens[market] = cp
}

// Enqueue pushes every market in scores that isn't already active onto
// the pending priority queue.
func (m *Manager) Enqueue(scores []domain.MarketScore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scores {
		if _, active := m.activeMarkets[s.MarketID]; active {
			continue
		}
		if _, queued := m.queued[s.MarketID]; queued {
			continue
		}
		heap.Push(&m.pending, scoredEntry{score: s, sequence: m.nextSequence})
		m.queued[s.MarketID] = struct{}{}
		m.nextSequence++
	}
}

// Expand activates up to n of the highest-scoring pending markets,
// respecting maxSubscriptions, and returns every token newly subscribed.
func (m *Manager) Expand(n int) []ids.TokenId {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added []ids.TokenId
	addedMarkets := 0
	for addedMarkets < n && m.pending.Len() > 0 {
		entry := heap.Pop(&m.pending).(scoredEntry)
		marketID := entry.score.MarketID
		delete(m.queued, marketID)

		tokens, ok := m.marketTokens[marketID]
		if !ok {
			m.logger.Warn("subscription: skipping market with no registered tokens", "market_id", string(marketID))
			continue
		}
		if len(m.activeTokens)+len(tokens) > m.maxSubscriptions {
			// no capacity for the best candidate; put it back and stop
			heap.Push(&m.pending, entry)
			m.queued[marketID] = struct{}{}
			break
		}

		m.activeTokens = append(m.activeTokens, tokens...)
		m.activeMarkets[marketID] = struct{}{}
		added = append(added, tokens...)
		addedMarkets++
	}
	return added
}

// Contract deactivates the n most-recently-activated tokens (LIFO) and
// drops any market left with no active token, returning the removed
// tokens.
func (m *Manager) Contract(n int) []ids.TokenId {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n > len(m.activeTokens) {
		n = len(m.activeTokens)
	}
	if n <= 0 {
		return nil
	}

	split := len(m.activeTokens) - n
	removed := append([]ids.TokenId(nil), m.activeTokens[split:]...)
	m.activeTokens = m.activeTokens[:split]

	remaining := make(map[ids.TokenId]struct{}, len(m.activeTokens))
	for _, t := range m.activeTokens {
		remaining[t] = struct{}{}
	}
	for marketID, tokens := range m.marketTokens {
		if _, active := m.activeMarkets[marketID]; !active {
			continue
		}
		stillActive := false
		for _, t := range tokens {
			if _, ok := remaining[t]; ok {
				stillActive = true
				break
			}
		}
		if !stillActive {
			delete(m.activeMarkets, marketID)
		}
	}

	return removed
}

// ExpandSafe runs Expand recovering any panic into ErrInternal rather
// than letting it unwind the caller's goroutine, logging the recovered
// value before returning.
func (m *Manager) ExpandSafe(n int) (tokens []ids.TokenId, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscription: recovered panic in Expand", "panic", r)
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return m.Expand(n), nil
}

// ContractSafe runs Contract recovering any panic into ErrInternal.
func (m *Manager) ContractSafe(n int) (tokens []ids.TokenId, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscription: recovered panic in Contract", "panic", r)
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return m.Contract(n), nil
}

// ActiveTokens returns a copy of the currently active token list.
func (m *Manager) ActiveTokens() []ids.TokenId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ids.TokenId, len(m.activeTokens))
	copy(out, m.activeTokens)
	return out
}

// ActiveMarketCount returns the number of markets currently active.
func (m *Manager) ActiveMarketCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeMarkets)
}

// PendingCount returns the number of markets waiting in the priority queue.
func (m *Manager) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending.Len()
}
