package strategy

import (
	"github.com/edgelord/edgelord/internal/domain"
)

// MarketRebalancingConfig tunes the multi-outcome detector's rejection
// thresholds.
type MarketRebalancingConfig struct {
	MinEdge   domain.Money
	MinProfit domain.Money
}

// MarketRebalancing detects N-outcome arbitrage: buying every outcome's
// best ask for less than the market's payout guarantees a profit. Applies
// only to markets with three or more outcomes — two-outcome markets are
// SingleCondition's territory.
type MarketRebalancing struct {
	cfg MarketRebalancingConfig
}

// NewMarketRebalancing constructs the multi-outcome detector.
func NewMarketRebalancing(cfg MarketRebalancingConfig) *MarketRebalancing {
	return &MarketRebalancing{cfg: cfg}
}

func (m *MarketRebalancing) Name() string { return "market_rebalancing" }

func (m *MarketRebalancing) AppliesTo(mc MarketContext) bool {
	return mc.OutcomeCount >= 3
}

func (m *MarketRebalancing) Detect(dc DetectionContext) []domain.Opportunity {
	tokens := dc.TokenIDs()
	if len(tokens) < 3 {
		return nil
	}

	legs := make([]domain.OpportunityLeg, 0, len(tokens))
	total := domain.Zero()
	var volume domain.Volume
	for i, tok := range tokens {
		ask, ok := dc.BestAsk(tok)
		if !ok {
			return nil
		}
		vol, ok := dc.AskVolume(tok)
		if !ok {
			return nil
		}
		legs = append(legs, domain.OpportunityLeg{TokenID: tok, AskPrice: ask})
		total = total.Add(ask)
		if i == 0 || vol.LessThan(volume) {
			volume = vol
		}
	}

	payout := dc.Payout()
	if !total.LessThan(payout) {
		return nil
	}
	edge := payout.Sub(total)
	if edge.LessThan(m.cfg.MinEdge) {
		return nil
	}
	expectedProfit := edge.Mul(volume)
	if expectedProfit.LessThan(m.cfg.MinProfit) {
		return nil
	}

	opp, err := domain.NewOpportunity(dc.MarketID(), dc.Question(), legs, volume, payout, m.Name())
	if err != nil {
		return nil
	}
	return []domain.Opportunity{opp}
}
