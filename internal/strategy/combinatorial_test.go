package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/domain"
)

// TestCombinatorial_S9_MutualExclusionGap builds a 3-market "exactly one"
// cluster whose asks sum above 1.0 (total 1.05), which is exactly the
// combinatorial-arbitrage shape S9 describes: an "exactly one of these
// resolves yes" constraint with mispriced asks should produce a positive
// divergence gap against the uniform-normalized price vector.
func TestCombinatorial_S9_MutualExclusionGap(t *testing.T) {
	markets := []ClusterMarket{
		{MarketID: "m1", TokenID: "m1-yes", AskPrice: decimal.NewFromFloat(0.35), AskVol: decimal.NewFromFloat(100)},
		{MarketID: "m2", TokenID: "m2-yes", AskPrice: decimal.NewFromFloat(0.35), AskVol: decimal.NewFromFloat(100)},
		{MarketID: "m3", TokenID: "m3-yes", AskPrice: decimal.NewFromFloat(0.35), AskVol: decimal.NewFromFloat(100)},
	}
	// "exactly one" => sum of indicator variables == 1.
	constraints := []domain.Constraint{
		{Coefficients: []float64{1, 1, 1}, Sense: domain.SenseEqual, RHS: 1},
	}

	c := NewCombinatorial(CombinatorialConfig{MinGap: 1e-6})
	result, found := c.DetectCluster("three-way exactly one", "cluster-1", markets, constraints, nil)
	if !found {
		t.Fatalf("expected a combinatorial opportunity, got none (gap=%v)", result.Gap)
	}
	if result.Gap <= 0 {
		t.Errorf("gap = %v, want > 0", result.Gap)
	}
	sum := 0.0
	for _, m := range result.Mu {
		sum += m
	}
	if diff := sum - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("mu does not sum to 1: %v", result.Mu)
	}
}

func TestCombinatorial_NoGapBelowThreshold(t *testing.T) {
	markets := []ClusterMarket{
		{MarketID: "m1", TokenID: "m1-yes", AskPrice: decimal.NewFromFloat(1.0 / 3), AskVol: decimal.NewFromFloat(100)},
		{MarketID: "m2", TokenID: "m2-yes", AskPrice: decimal.NewFromFloat(1.0 / 3), AskVol: decimal.NewFromFloat(100)},
		{MarketID: "m3", TokenID: "m3-yes", AskPrice: decimal.NewFromFloat(1.0 / 3), AskVol: decimal.NewFromFloat(100)},
	}
	constraints := []domain.Constraint{
		{Coefficients: []float64{1, 1, 1}, Sense: domain.SenseEqual, RHS: 1},
	}

	c := NewCombinatorial(CombinatorialConfig{MinGap: 0.5})
	_, found := c.DetectCluster("balanced", "cluster-2", markets, constraints, nil)
	if found {
		t.Fatal("expected no opportunity for an already-balanced cluster at a high MinGap")
	}
}
