package strategy

import (
	"github.com/edgelord/edgelord/internal/domain"
)

// SingleConditionConfig tunes the binary-market detector's rejection
// thresholds.
type SingleConditionConfig struct {
	MinEdge   domain.Money
	MinProfit domain.Money
}

// SingleCondition detects binary-market arbitrage: buying both outcomes'
// best asks for less than the market's payout guarantees a profit. Applies
// only to exactly-two-outcome markets.
type SingleCondition struct {
	cfg SingleConditionConfig
}

// NewSingleCondition constructs the binary-market detector.
func NewSingleCondition(cfg SingleConditionConfig) *SingleCondition {
	return &SingleCondition{cfg: cfg}
}

func (s *SingleCondition) Name() string { return "single_condition" }

func (s *SingleCondition) AppliesTo(mc MarketContext) bool {
	return mc.OutcomeCount == 2
}

func (s *SingleCondition) Detect(dc DetectionContext) []domain.Opportunity {
	tokens := dc.TokenIDs()
	if len(tokens) != 2 {
		return nil
	}
	yes, no := tokens[0], tokens[1]

	askYes, ok := dc.BestAsk(yes)
	if !ok {
		return nil
	}
	askNo, ok := dc.BestAsk(no)
	if !ok {
		return nil
	}
	volYes, ok := dc.AskVolume(yes)
	if !ok {
		return nil
	}
	volNo, ok := dc.AskVolume(no)
	if !ok {
		return nil
	}

	total := askYes.Add(askNo)
	payout := dc.Payout()
	if !total.LessThan(payout) {
		return nil
	}

	edge := payout.Sub(total)
	if edge.LessThan(s.cfg.MinEdge) {
		return nil
	}

	volume := volYes
	if volNo.LessThan(volume) {
		volume = volNo
	}
	expectedProfit := edge.Mul(volume)
	if expectedProfit.LessThan(s.cfg.MinProfit) {
		return nil
	}

	opp, err := domain.NewOpportunity(
		dc.MarketID(),
		dc.Question(),
		[]domain.OpportunityLeg{
			{TokenID: yes, AskPrice: askYes},
			{TokenID: no, AskPrice: askNo},
		},
		volume,
		payout,
		s.Name(),
	)
	if err != nil {
		return nil
	}
	return []domain.Opportunity{opp}
}
