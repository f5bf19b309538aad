package subscription

import (
	"testing"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

func score(marketID ids.MarketId, composite float64) domain.MarketScore {
	return domain.MarketScore{MarketID: marketID, Composite: composite}
}

// TestExpand_Invariant4_PopsHighestScoringFirst covers invariant #4: after
// Expand(k), the k markets popped are the k highest-scoring at call start,
// and the active token count never exceeds maxSubscriptions.
func TestExpand_Invariant4_PopsHighestScoringFirst(t *testing.T) {
	m := New(100, nil)
	m.RegisterMarketTokens("m1", []ids.TokenId{"m1-a", "m1-b"})
	m.RegisterMarketTokens("m2", []ids.TokenId{"m2-a"})
	m.RegisterMarketTokens("m3", []ids.TokenId{"m3-a"})

	m.Enqueue([]domain.MarketScore{
		score("m1", 0.5),
		score("m2", 0.9),
		score("m3", 0.1),
	})

	added := m.Expand(2)
	if len(added) != 3 {
		t.Fatalf("expected 3 tokens added (m2's 1 + m1's 2), got %d: %v", len(added), added)
	}
	if m.ActiveMarketCount() != 2 {
		t.Fatalf("expected 2 active markets, got %d", m.ActiveMarketCount())
	}
	if len(m.ActiveTokens()) > 100 {
		t.Fatalf("active tokens exceeded maxSubscriptions")
	}
	// m2 (highest score) must have been activated.
	found := false
	for _, tok := range m.ActiveTokens() {
		if tok == "m2-a" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected highest-scoring market m2 to be activated")
	}
}

func TestExpand_RespectsMaxSubscriptions(t *testing.T) {
	m := New(2, nil)
	m.RegisterMarketTokens("m1", []ids.TokenId{"m1-a", "m1-b"})
	m.RegisterMarketTokens("m2", []ids.TokenId{"m2-a"})

	m.Enqueue([]domain.MarketScore{score("m1", 0.9), score("m2", 0.5)})
	added := m.Expand(2)
	if len(added) != 2 {
		t.Fatalf("expected only m1's 2 tokens to fit within maxSubscriptions=2, got %d", len(added))
	}
	if m.ActiveMarketCount() != 1 {
		t.Fatalf("expected 1 active market (m2 shouldn't fit), got %d", m.ActiveMarketCount())
	}
}

func TestExpand_SkipsUnregisteredMarket(t *testing.T) {
	m := New(100, nil)
	m.Enqueue([]domain.MarketScore{score("unregistered", 0.9)})
	added := m.Expand(1)
	if added != nil {
		t.Fatalf("expected no tokens added for an unregistered market, got %v", added)
	}
}

// TestContract_Invariant3_LIFOAndMarketCleanup covers invariant #3: after
// Contract(k), len(activeTokens) == max(0, oldSize-k), and every market
// left in activeMarkets has >= 1 active token.
func TestContract_Invariant3_LIFOAndMarketCleanup(t *testing.T) {
	m := New(100, nil)
	m.RegisterMarketTokens("m1", []ids.TokenId{"m1-a"})
	m.RegisterMarketTokens("m2", []ids.TokenId{"m2-a"})
	m.Enqueue([]domain.MarketScore{score("m1", 0.9), score("m2", 0.8)})
	m.Expand(2)

	oldSize := len(m.ActiveTokens())
	removed := m.Contract(1)
	if len(removed) != 1 {
		t.Fatalf("expected 1 token removed, got %d", len(removed))
	}
	if got := len(m.ActiveTokens()); got != oldSize-1 {
		t.Fatalf("active tokens = %d, want %d", got, oldSize-1)
	}
	// The LIFO-removed token's market (m2, activated second) must have been dropped.
	if m.ActiveMarketCount() != 1 {
		t.Fatalf("expected 1 active market after contract, got %d", m.ActiveMarketCount())
	}
}

func TestContract_ClampsToActiveSize(t *testing.T) {
	m := New(100, nil)
	m.RegisterMarketTokens("m1", []ids.TokenId{"m1-a"})
	m.Enqueue([]domain.MarketScore{score("m1", 0.9)})
	m.Expand(1)

	removed := m.Contract(10)
	if len(removed) != 1 {
		t.Fatalf("expected contract to clamp to 1 active token, got %d", len(removed))
	}
	if len(m.ActiveTokens()) != 0 {
		t.Fatal("expected no active tokens remaining")
	}
}

func TestEnqueue_SkipsAlreadyActiveMarket(t *testing.T) {
	m := New(100, nil)
	m.RegisterMarketTokens("m1", []ids.TokenId{"m1-a"})
	m.Enqueue([]domain.MarketScore{score("m1", 0.9)})
	m.Expand(1)

	m.Enqueue([]domain.MarketScore{score("m1", 0.9)})
	if m.PendingCount() != 0 {
		t.Fatalf("expected already-active market not to be re-queued, pending = %d", m.PendingCount())
	}
}
