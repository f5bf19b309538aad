package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/edgelord/edgelord/internal/api"
	"github.com/edgelord/edgelord/internal/config"
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/money"
)

// testWalletKey is a throwaway secp256k1 key used only to satisfy auth
// construction in tests; it controls nothing.
const testWalletKey = "2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6"

type captureNotifier struct {
	mu     sync.Mutex
	events []api.DashboardEvent
}

func (c *captureNotifier) Notify(event api.DashboardEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureNotifier) ofType(eventType string) []api.DashboardEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []api.DashboardEvent
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *captureNotifier) {
	t.Helper()

	cfg := config.Default()
	cfg.DryRun = true
	cfg.Wallet.PrivateKey = testWalletKey
	cfg.Wallet.ChainID = 137
	cfg.API.CLOBBaseURL = "https://clob.example.invalid"
	cfg.Risk.MaxPositionPerMarket = 1000
	cfg.Risk.MaxTotalExposure = 1000
	cfg.Risk.MinProfitThreshold = 0.01
	cfg.Risk.MaxSlippage = 0.05
	cfg.Store.DataDir = t.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	capture := &captureNotifier{}
	o.notifier = capture
	return o, capture
}

func seedBook(o *Orchestrator, token ids.TokenId, askPrice float64, askSize float64) {
	o.books.Update(domain.Book{
		TokenID: token,
		Asks:    []domain.PriceLevel{{Price: money.FromFloat(askPrice), Size: money.FromFloat(askSize)}},
	})
}

func testOpportunity(t *testing.T) domain.Opportunity {
	t.Helper()
	opp, err := domain.NewOpportunity(
		"m1",
		"will it?",
		[]domain.OpportunityLeg{
			{TokenID: "tok-yes", AskPrice: money.FromFloat(0.40)},
			{TokenID: "tok-no", AskPrice: money.FromFloat(0.50)},
		},
		money.FromFloat(100),
		money.FromFloat(1.00),
		"single_condition",
	)
	if err != nil {
		t.Fatalf("NewOpportunity: %v", err)
	}
	return opp
}

func TestHandleOpportunity_SuccessRecordsPositionAndNotifiesOnce(t *testing.T) {
	o, capture := newTestOrchestrator(t)
	seedBook(o, "tok-yes", 0.40, 100)
	seedBook(o, "tok-no", 0.50, 100)

	o.handleOpportunity(context.Background(), testOpportunity(t))

	if got := len(capture.ofType(api.EventOpportunityDetected)); got != 1 {
		t.Errorf("opportunity_detected events = %d, want 1", got)
	}
	completed := capture.ofType(api.EventExecutionCompleted)
	if len(completed) != 1 {
		t.Fatalf("execution_completed events = %d, want exactly 1", len(completed))
	}
	if evt := completed[0].Data.(api.ExecutionCompletedEvent); evt.Outcome != "success" {
		t.Errorf("outcome = %q, want success", evt.Outcome)
	}

	if got := o.riskMgr.PendingExecutionCount(); got != 0 {
		t.Errorf("pending reservations after execution = %d, want 0", got)
	}

	o.positionsMu.RLock()
	defer o.positionsMu.RUnlock()
	if len(o.positions) != 1 {
		t.Fatalf("tracked positions = %d, want 1", len(o.positions))
	}
	for _, pos := range o.positions {
		if _, open := pos.Status.(domain.StatusOpen); !open {
			t.Errorf("position status = %T, want StatusOpen", pos.Status)
		}
	}
}

func TestHandleOpportunity_StaleBookAbortsBeforeExecution(t *testing.T) {
	o, capture := newTestOrchestrator(t)
	// Ask drifted from the detected 0.50 to 0.60: 20% > the 5% tolerance.
	seedBook(o, "tok-yes", 0.40, 100)
	seedBook(o, "tok-no", 0.60, 100)

	o.handleOpportunity(context.Background(), testOpportunity(t))

	rejected := capture.ofType(api.EventRiskRejected)
	if len(rejected) != 1 {
		t.Fatalf("risk_rejected events = %d, want 1", len(rejected))
	}
	if len(capture.ofType(api.EventExecutionCompleted)) != 0 {
		t.Error("expected no execution for a stale opportunity")
	}
	if got := o.riskMgr.PendingExecutionCount(); got != 0 {
		t.Errorf("pending reservations after stale abort = %d, want 0", got)
	}
}

func TestHandleOpportunity_MissingBookIsStale(t *testing.T) {
	o, capture := newTestOrchestrator(t)
	// No books seeded at all: the pre-submission probe must refuse.

	o.handleOpportunity(context.Background(), testOpportunity(t))

	if len(capture.ofType(api.EventRiskRejected)) != 1 {
		t.Fatal("expected a risk_rejected event when books are missing")
	}
	if got := o.riskMgr.PendingExecutionCount(); got != 0 {
		t.Errorf("pending reservations = %d, want 0", got)
	}
}

func TestTripBreakerGatesOpportunitiesUntilReset(t *testing.T) {
	o, capture := newTestOrchestrator(t)
	seedBook(o, "tok-yes", 0.40, 100)
	seedBook(o, "tok-no", 0.50, 100)

	o.TripBreaker("manual stop")
	if len(capture.ofType(api.EventCircuitBreakerActivated)) != 1 {
		t.Fatal("expected a circuit_breaker_activated event")
	}

	o.handleOpportunity(context.Background(), testOpportunity(t))
	if len(capture.ofType(api.EventExecutionCompleted)) != 0 {
		t.Error("expected no execution while the breaker is active")
	}
	if len(capture.ofType(api.EventRiskRejected)) != 1 {
		t.Error("expected the gated opportunity to surface as risk_rejected")
	}

	o.ResetBreaker()
	if len(capture.ofType(api.EventCircuitBreakerReset)) != 1 {
		t.Fatal("expected a circuit_breaker_reset event")
	}

	o.handleOpportunity(context.Background(), testOpportunity(t))
	if len(capture.ofType(api.EventExecutionCompleted)) != 1 {
		t.Error("expected execution to resume after reset")
	}
}
