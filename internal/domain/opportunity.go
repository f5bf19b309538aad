package domain

import (
	"fmt"

	"github.com/edgelord/edgelord/pkg/ids"
)

// OpportunityLeg is one token/price pair within a multi-leg opportunity.
type OpportunityLeg struct {
	TokenID  ids.TokenId
	AskPrice Price
}

// Opportunity is a detected arbitrage: buying every leg at its ask price
// guarantees Payout per unit of Volume traded, for a profit of Edge*Volume.
type Opportunity struct {
	MarketID     ids.MarketId
	Question     string
	Legs         []OpportunityLeg
	Volume       Volume
	Payout       Money
	StrategyName string
}

// TotalCost is the sum of every leg's ask price.
func (o Opportunity) TotalCost() Money {
	total := Zero()
	for _, leg := range o.Legs {
		total = total.Add(leg.AskPrice)
	}
	return total
}

// Edge is Payout minus TotalCost; positive means risk-free profit per unit.
func (o Opportunity) Edge() Money {
	return o.Payout.Sub(o.TotalCost())
}

// ExpectedProfit is Edge multiplied by Volume.
func (o Opportunity) ExpectedProfit() Money {
	return o.Edge().Mul(o.Volume)
}

// NewOpportunity validates and constructs an Opportunity. It rejects any
// candidate whose payout does not exceed its total cost, or whose volume is
// not strictly positive — the two invariants every detector must uphold
// before handing a result to the risk gate.
func NewOpportunity(marketID ids.MarketId, question string, legs []OpportunityLeg, volume, payout Money, strategyName string) (Opportunity, error) {
	if len(legs) == 0 {
		return Opportunity{}, fmt.Errorf("opportunity %s: legs must be non-empty", marketID)
	}
	if !volume.IsPositive() {
		return Opportunity{}, fmt.Errorf("opportunity %s: volume must be positive, got %s", marketID, volume)
	}
	o := Opportunity{
		MarketID:     marketID,
		Question:     question,
		Legs:         legs,
		Volume:       volume,
		Payout:       payout,
		StrategyName: strategyName,
	}
	if !o.Payout.GreaterThan(o.TotalCost()) {
		return Opportunity{}, fmt.Errorf("opportunity %s: payout %s does not exceed total cost %s", marketID, o.Payout, o.TotalCost())
	}
	return o, nil
}
