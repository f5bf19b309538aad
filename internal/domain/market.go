package domain

import (
	"fmt"

	"github.com/edgelord/edgelord/pkg/ids"
)

// Outcome is one tradeable outcome within a Market.
type Outcome struct {
	TokenID ids.TokenId
	Name    string
}

// Market is a prediction market with one or more outcomes summing to a
// fixed payout on settlement.
type Market struct {
	MarketID ids.MarketId
	Question string
	Outcomes []Outcome
	Payout   Money
}

// IsBinary reports whether the market has exactly two outcomes.
func (m Market) IsBinary() bool {
	return len(m.Outcomes) == 2
}

// TokenIDs returns the token IDs of every outcome, in declaration order.
func (m Market) TokenIDs() []ids.TokenId {
	out := make([]ids.TokenId, len(m.Outcomes))
	for i, o := range m.Outcomes {
		out[i] = o.TokenID
	}
	return out
}

// Validate checks the invariants a Market must hold: a non-empty outcome
// list, unique token IDs, and a positive payout.
func (m Market) Validate() error {
	if len(m.Outcomes) == 0 {
		return fmt.Errorf("market %s: outcomes must be non-empty", m.MarketID)
	}
	if !m.Payout.IsPositive() {
		return fmt.Errorf("market %s: payout must be positive", m.MarketID)
	}
	seen := make(map[ids.TokenId]struct{}, len(m.Outcomes))
	for _, o := range m.Outcomes {
		if _, dup := seen[o.TokenID]; dup {
			return fmt.Errorf("market %s: duplicate token id %s", m.MarketID, o.TokenID)
		}
		seen[o.TokenID] = struct{}{}
	}
	return nil
}
