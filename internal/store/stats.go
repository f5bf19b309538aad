package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
)

// StatsRecorder is the port the orchestrator calls on every opportunity,
// execution outcome, and recorded position.
type StatsRecorder interface {
	RecordOpportunity(opp domain.Opportunity)
	RecordExecution(result domain.TradeResult)
	RecordPosition(pos domain.Position)
}

// Counters is a rolling tally of everything the dashboard's daily summary
// and scanner opportunity-score feedback loop need.
type Counters struct {
	PeriodStart time.Time `json:"period_start"`

	OpportunitiesFound  int `json:"opportunities_found"`
	ExecutionsAttempted int `json:"executions_attempted"`
	ExecutionsSucceeded int `json:"executions_succeeded"`
	ExecutionsPartial   int `json:"executions_partial"`
	ExecutionsFailed    int `json:"executions_failed"`
	ExecutionsClosed    int `json:"executions_closed"`

	TotalProfit float64 `json:"total_profit"`

	// PerMarketHits counts opportunities found per market, the hit-rate
	// input market.Scanner's ranking leaves at zero until this
	// accumulates — see internal/market/scanner.go's buildDiscovered.
	PerMarketHits map[string]int `json:"per_market_hits"`
}

// WinRate reports ExecutionsSucceeded / ExecutionsAttempted, or 0 if
// nothing has been attempted yet.
func (c Counters) WinRate() float64 {
	if c.ExecutionsAttempted == 0 {
		return 0
	}
	return float64(c.ExecutionsSucceeded) / float64(c.ExecutionsAttempted)
}

// StatsStore implements StatsRecorder over an in-memory Counters tally,
// persisted to stats.json with the same atomic write discipline
// SavePosition uses.
type StatsStore struct {
	dir string

	mu       sync.Mutex
	counters Counters
}

// OpenStats loads (or initializes) a StatsStore backed by dir/stats.json.
func OpenStats(dir string) (*StatsStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create stats dir: %w", err)
	}
	s := &StatsStore{dir: dir, counters: Counters{PeriodStart: time.Now(), PerMarketHits: make(map[string]int)}}

	data, err := os.ReadFile(s.path())
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &s.counters); jsonErr != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", jsonErr)
		}
		if s.counters.PerMarketHits == nil {
			s.counters.PerMarketHits = make(map[string]int)
		}
	case os.IsNotExist(err):
		// fresh start
	default:
		return nil, fmt.Errorf("read stats: %w", err)
	}
	return s, nil
}

func (s *StatsStore) path() string {
	return filepath.Join(s.dir, "stats.json")
}

func (s *StatsStore) persist() {
	data, err := json.Marshal(s.counters)
	if err != nil {
		return
	}
	tmp := s.path() + ".tmp"
	if os.WriteFile(tmp, data, 0o600) != nil {
		return
	}
	os.Rename(tmp, s.path())
}

// RecordOpportunity tallies one detected opportunity.
func (s *StatsStore) RecordOpportunity(opp domain.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.OpportunitiesFound++
	s.counters.PerMarketHits[string(opp.MarketID)]++
	s.persist()
}

// RecordExecution tallies one completed execution attempt by outcome.
func (s *StatsStore) RecordExecution(result domain.TradeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.ExecutionsAttempted++
	switch result.(type) {
	case domain.TradeSuccess:
		s.counters.ExecutionsSucceeded++
	case domain.TradePartial:
		s.counters.ExecutionsPartial++
	case domain.TradeFailed:
		s.counters.ExecutionsFailed++
	}
	s.persist()
}

// RecordPosition tallies a closed position's realized profit.
func (s *StatsStore) RecordPosition(pos domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if closed, ok := pos.Status.(domain.StatusClosed); ok {
		s.counters.ExecutionsClosed++
		pnl, _ := closed.PnL.Float64()
		s.counters.TotalProfit += pnl
	}
	s.persist()
}

// Snapshot returns a copy of the current counters.
func (s *StatsStore) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := make(map[string]int, len(s.counters.PerMarketHits))
	for k, v := range s.counters.PerMarketHits {
		hits[k] = v
	}
	c := s.counters
	c.PerMarketHits = hits
	return c
}

// OpportunityScore returns a [0,1] hit-rate factor for marketID, derived
// from PerMarketHits and saturating at 10 hits — the Factors.Opportunity
// input market.Scanner's ranking otherwise leaves at zero.
func (s *StatsStore) OpportunityScore(marketID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := s.counters.PerMarketHits[marketID]
	score := float64(hits) / 10.0
	if score > 1 {
		score = 1
	}
	return score
}
