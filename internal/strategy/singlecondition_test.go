package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

func binaryMarket() domain.Market {
	return domain.Market{
		MarketID: "m1",
		Question: "will it happen",
		Outcomes: []domain.Outcome{
			{TokenID: "yes", Name: "Yes"},
			{TokenID: "no", Name: "No"},
		},
		Payout: decimal.NewFromFloat(1.00),
	}
}

func bookWithAsk(token ids.TokenId, price, size float64) domain.Book {
	return domain.Book{
		TokenID: token,
		Asks:    []domain.PriceLevel{{Price: decimal.NewFromFloat(price), Size: decimal.NewFromFloat(size)}},
	}
}

func TestSingleCondition_S1_DetectsArbitrage(t *testing.T) {
	m := binaryMarket()
	books := map[ids.TokenId]domain.Book{
		"yes": bookWithAsk("yes", 0.40, 100),
		"no":  bookWithAsk("no", 0.50, 100),
	}
	dc := NewDetectionContext(m, books)

	s := NewSingleCondition(SingleConditionConfig{
		MinEdge:   decimal.NewFromFloat(0.05),
		MinProfit: decimal.NewFromFloat(0.50),
	})
	if !s.AppliesTo(dc.MarketContext()) {
		t.Fatal("expected single_condition to apply to a binary market")
	}

	opps := s.Detect(dc)
	if len(opps) != 1 {
		t.Fatalf("expected exactly one opportunity, got %d", len(opps))
	}
	opp := opps[0]
	if !opp.TotalCost().Equal(decimal.NewFromFloat(0.90)) {
		t.Errorf("total cost = %s, want 0.90", opp.TotalCost())
	}
	if !opp.Edge().Equal(decimal.NewFromFloat(0.10)) {
		t.Errorf("edge = %s, want 0.10", opp.Edge())
	}
	if !opp.Volume.Equal(decimal.NewFromFloat(100)) {
		t.Errorf("volume = %s, want 100", opp.Volume)
	}
	if !opp.ExpectedProfit().Equal(decimal.NewFromFloat(10.00)) {
		t.Errorf("expected profit = %s, want 10.00", opp.ExpectedProfit())
	}
}

func TestSingleCondition_S2_NoArbitrageAtEquilibrium(t *testing.T) {
	m := binaryMarket()
	books := map[ids.TokenId]domain.Book{
		"yes": bookWithAsk("yes", 0.50, 100),
		"no":  bookWithAsk("no", 0.50, 100),
	}
	dc := NewDetectionContext(m, books)
	s := NewSingleCondition(SingleConditionConfig{MinEdge: decimal.NewFromFloat(0.05), MinProfit: decimal.NewFromFloat(0.50)})

	if opps := s.Detect(dc); len(opps) != 0 {
		t.Fatalf("expected no opportunities at equilibrium, got %d", len(opps))
	}
}

func TestSingleCondition_S3_VolumeClamp(t *testing.T) {
	m := binaryMarket()
	books := map[ids.TokenId]domain.Book{
		"yes": bookWithAsk("yes", 0.40, 50),
		"no":  bookWithAsk("no", 0.50, 100),
	}
	dc := NewDetectionContext(m, books)
	s := NewSingleCondition(SingleConditionConfig{MinEdge: decimal.NewFromFloat(0.05), MinProfit: decimal.NewFromFloat(0.50)})

	opps := s.Detect(dc)
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}
	if !opps[0].Volume.Equal(decimal.NewFromFloat(50)) {
		t.Errorf("volume = %s, want 50 (clamped to smaller leg)", opps[0].Volume)
	}
	if !opps[0].ExpectedProfit().Equal(decimal.NewFromFloat(5.00)) {
		t.Errorf("expected profit = %s, want 5.00", opps[0].ExpectedProfit())
	}
}

func TestSingleCondition_AppliesTo_RejectsNonBinary(t *testing.T) {
	s := NewSingleCondition(SingleConditionConfig{})
	if s.AppliesTo(MarketContext{OutcomeCount: 3}) {
		t.Fatal("single_condition must not apply to a 3-outcome market")
	}
}

func TestSingleCondition_MissingBook(t *testing.T) {
	m := binaryMarket()
	dc := NewDetectionContext(m, map[ids.TokenId]domain.Book{})
	s := NewSingleCondition(SingleConditionConfig{})
	if opps := s.Detect(dc); len(opps) != 0 {
		t.Fatalf("expected no opportunities without book data, got %d", len(opps))
	}
}
