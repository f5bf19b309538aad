package risk

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

func testLimits() Limits {
	return Limits{
		MaxPositionPerMarket: decimal.NewFromFloat(1000),
		MaxTotalExposure:     decimal.NewFromFloat(100),
		MinProfitThreshold:   decimal.NewFromFloat(0.01),
	}
}

func opportunity(t *testing.T, marketID ids.MarketId, totalCost, volume, payout float64) domain.Opportunity {
	t.Helper()
	opp, err := domain.NewOpportunity(
		marketID,
		"q",
		[]domain.OpportunityLeg{{TokenID: "a", AskPrice: decimal.NewFromFloat(totalCost)}},
		decimal.NewFromFloat(volume),
		decimal.NewFromFloat(payout),
		"test",
	)
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}
	return opp
}

// TestManager_S4_ConcurrentRiskCap exercises invariant #2: with
// max_total_exposure=100, two simultaneous 60-exposure opportunities must
// not both be approved.
func TestManager_S4_ConcurrentRiskCap(t *testing.T) {
	m := NewManager(testLimits(), nil)

	// 60 total cost * 1 volume = 60 exposure each; two of them exceed 100.
	opp1 := opportunity(t, "m1", 60, 1, 61)
	opp2 := opportunity(t, "m2", 60, 1, 61)

	var wg sync.WaitGroup
	results := make([]CheckResult, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = m.Check(opp1) }()
	go func() { defer wg.Done(); results[1] = m.Check(opp2) }()
	wg.Wait()

	approved := 0
	for _, r := range results {
		if r.Decision == Approved {
			approved++
		}
	}
	if approved != 1 {
		t.Fatalf("expected exactly 1 of 2 concurrent 60-exposure checks approved under a 100 total limit, got %d", approved)
	}
}

func TestManager_Check_RejectsWhenCircuitBreakerActive(t *testing.T) {
	m := NewManager(testLimits(), nil)
	m.Activate("daily loss exceeded")

	opp := opportunity(t, "m1", 1, 1, 2)
	result := m.Check(opp)
	if result.Decision != Rejected {
		t.Fatal("expected rejection while circuit breaker is active")
	}
}

func TestManager_Check_RejectsBelowMinProfit(t *testing.T) {
	limits := testLimits()
	limits.MinProfitThreshold = decimal.NewFromFloat(100)
	m := NewManager(limits, nil)

	opp := opportunity(t, "m1", 1, 1, 1.01)
	result := m.Check(opp)
	if result.Decision != Rejected {
		t.Fatal("expected rejection when expected profit is below threshold")
	}
}

// TestManager_Release_ExactlyOnce covers invariant #9: an approved check is
// followed by exactly one successful release, and the pending count returns
// to zero.
func TestManager_Release_ExactlyOnce(t *testing.T) {
	m := NewManager(testLimits(), nil)
	opp := opportunity(t, "m1", 10, 1, 11)

	result := m.Check(opp)
	if result.Decision != Approved {
		t.Fatalf("expected approval, got reject: %s", result.Reason)
	}
	if got := m.PendingExecutionCount(); got != 1 {
		t.Fatalf("pending count = %d, want 1", got)
	}

	m.Release(result.Handle)
	if got := m.PendingExecutionCount(); got != 0 {
		t.Fatalf("pending count after release = %d, want 0", got)
	}

	// A second release on the same handle must not double-decrement.
	m.Release(result.Handle)
	if got := m.PendingExecutionCount(); got != 0 {
		t.Fatalf("pending count after double release = %d, want 0", got)
	}
}

func TestManager_CircuitBreaker_ActivateResetIdempotent(t *testing.T) {
	m := NewManager(testLimits(), nil)
	if m.IsActive() {
		t.Fatal("breaker should start inactive")
	}
	m.Activate("reason one")
	m.Activate("reason two")
	if !m.IsActive() || m.Reason() != "reason two" {
		t.Fatalf("expected breaker active with latest reason, got active=%v reason=%q", m.IsActive(), m.Reason())
	}
	m.Reset()
	if m.IsActive() || m.Reason() != "" {
		t.Fatal("expected breaker cleared after Reset")
	}
}
