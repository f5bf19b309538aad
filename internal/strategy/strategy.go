// Package strategy implements the pluggable arbitrage detectors that turn a
// market's current order-book state into zero-or-more risk-free
// Opportunities: single-condition (binary), market-rebalancing (N-outcome
// sum-of-asks), and combinatorial (cluster-level, via internal/solver).
package strategy

import (
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// MarketContext is the subset of a market's shape a strategy needs to
// decide whether it applies, without needing live book data.
type MarketContext struct {
	OutcomeCount int
	HasCluster   bool
}

// DetectionContext is the read-only view a Strategy gets of one market's
// current state to run its detection logic against.
type DetectionContext struct {
	marketID      ids.MarketId
	question      string
	tokenIDs      []ids.TokenId
	payout        domain.Money
	marketContext MarketContext
	market        domain.Market
	books         map[ids.TokenId]domain.Book
}

// NewDetectionContext builds a DetectionContext from a market and the
// books of its own tokens, as fetched by the caller via book.Cache.GetMany.
func NewDetectionContext(m domain.Market, books map[ids.TokenId]domain.Book) DetectionContext {
	return DetectionContext{
		marketID:      m.MarketID,
		question:      m.Question,
		tokenIDs:      m.TokenIDs(),
		payout:        m.Payout,
		marketContext: MarketContext{OutcomeCount: len(m.Outcomes)},
		market:        m,
		books:         books,
	}
}

func (d DetectionContext) MarketID() ids.MarketId       { return d.marketID }
func (d DetectionContext) Question() string             { return d.question }
func (d DetectionContext) TokenIDs() []ids.TokenId      { return d.tokenIDs }
func (d DetectionContext) Payout() domain.Money         { return d.payout }
func (d DetectionContext) MarketContext() MarketContext { return d.marketContext }
func (d DetectionContext) Market() domain.Market        { return d.market }

// OrderBook returns the cached book for token, if present.
func (d DetectionContext) OrderBook(token ids.TokenId) (domain.Book, bool) {
	b, ok := d.books[token]
	return b, ok
}

// BestAsk returns the lowest ask price for token, if the book and side are
// non-empty.
func (d DetectionContext) BestAsk(token ids.TokenId) (domain.Price, bool) {
	b, ok := d.books[token]
	if !ok {
		return domain.Zero(), false
	}
	lvl, ok := b.BestAsk()
	if !ok {
		return domain.Zero(), false
	}
	return lvl.Price, true
}

// BestBid returns the highest bid price for token, if the book and side
// are non-empty.
func (d DetectionContext) BestBid(token ids.TokenId) (domain.Price, bool) {
	b, ok := d.books[token]
	if !ok {
		return domain.Zero(), false
	}
	lvl, ok := b.BestBid()
	if !ok {
		return domain.Zero(), false
	}
	return lvl.Price, true
}

// AskVolume returns the size available at the best ask for token.
func (d DetectionContext) AskVolume(token ids.TokenId) (domain.Volume, bool) {
	b, ok := d.books[token]
	if !ok {
		return domain.Zero(), false
	}
	lvl, ok := b.BestAsk()
	if !ok {
		return domain.Zero(), false
	}
	return lvl.Size, true
}

// Strategy is one pluggable arbitrage detector.
type Strategy interface {
	// Name is the detector's stable identifier, recorded on every
	// Opportunity it emits.
	Name() string
	// AppliesTo gates whether this strategy should even attempt detection
	// for a market with the given shape.
	AppliesTo(mc MarketContext) bool
	// Detect runs the strategy's detection logic and returns zero or more
	// opportunities for the market described by dc.
	Detect(dc DetectionContext) []domain.Opportunity
}

// Registry owns the set of strategies consulted for every market update.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds a Registry from the given strategies, in the order
// they should be consulted.
func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: append([]Strategy(nil), strategies...)}
}

// Detect runs every registered strategy whose AppliesTo gate passes against
// dc's market shape, concatenating their opportunities.
func (r *Registry) Detect(dc DetectionContext) []domain.Opportunity {
	var out []domain.Opportunity
	for _, s := range r.strategies {
		if !s.AppliesTo(dc.marketContext) {
			continue
		}
		out = append(out, s.Detect(dc)...)
	}
	return out
}

// Strategies returns the registered strategies, in consultation order.
func (r *Registry) Strategies() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}
