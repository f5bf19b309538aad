// Package risk gates every detected opportunity through a single
// reserve-and-release accounting model before the executor is allowed to
// touch the exchange.
//
// Check reserves exposure atomically against configured limits and hands
// back a ReservationHandle; the caller must eventually Release it exactly
// once, regardless of how execution turns out. A circuit breaker can be
// tripped independently of any single check, rejecting everything until
// Reset.
package risk

import (
	"log/slog"
	"sync"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/pkg/ids"
)

// Limits configures the risk gate's thresholds.
type Limits struct {
	MaxPositionPerMarket domain.Money
	MaxTotalExposure     domain.Money
	MinProfitThreshold   domain.Money
}

// Decision is the outcome of a Check call.
type Decision int

const (
	// Approved means the exposure has been reserved; the caller owns the
	// returned handle and must Release it.
	Approved Decision = iota
	// Rejected means no reservation was made.
	Rejected
)

// ReservationHandle is returned by an Approved Check and must be passed to
// Release exactly once.
type ReservationHandle struct {
	marketID ids.MarketId
	exposure domain.Money
	once     *sync.Once
}

// CheckResult is the return value of Check.
type CheckResult struct {
	Decision Decision
	Reason   string
	Handle   ReservationHandle
}

// Manager is the risk gate. The pending-exposure fields guard the single
// critical section the reservation model depends on: a Check must read
// current-plus-pending exposure and commit its own reservation atomically,
// or two concurrent checks could both approve past the total limit.
type Manager struct {
	limits Limits

	mu        sync.RWMutex
	positions map[ids.MarketId]domain.Money

	pendingMu             sync.Mutex
	pendingExposure       domain.Money
	pendingExecutionCount int

	breakerMu sync.RWMutex
	breaker   struct {
		active bool
		reason string
	}

	logger *slog.Logger
}

// NewManager constructs a risk gate with zeroed exposure state.
func NewManager(limits Limits, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		limits:          limits,
		positions:       make(map[ids.MarketId]domain.Money),
		pendingExposure: domain.Zero(),
		logger:          logger,
	}
}

// currentExposure returns the total recorded exposure across all markets.
func (m *Manager) currentExposure() domain.Money {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := domain.Zero()
	for _, v := range m.positions {
		total = total.Add(v)
	}
	return total
}

// SetExposure records a market's current exposure, called by the
// orchestrator once a position's size is known (e.g. after a fill or a
// close, or when positions are restored at startup).
func (m *Manager) SetExposure(marketID ids.MarketId, exposure domain.Money) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[marketID] = exposure
}

// Check evaluates an opportunity against the circuit breaker, the
// per-market and global exposure limits, and the minimum-profit
// threshold. An Approved result reserves the opportunity's exposure until
// Release is called on the returned handle.
func (m *Manager) Check(opp domain.Opportunity) CheckResult {
	if m.IsActive() {
		return CheckResult{Decision: Rejected, Reason: "circuit breaker: " + m.Reason()}
	}

	exposure := opp.TotalCost().Mul(opp.Volume)

	if opp.ExpectedProfit().LessThan(m.limits.MinProfitThreshold) {
		return CheckResult{Decision: Rejected, Reason: "expected profit below threshold"}
	}
	if exposure.GreaterThan(m.limits.MaxPositionPerMarket) {
		return CheckResult{Decision: Rejected, Reason: "exposure exceeds per-market limit"}
	}

	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	total := m.currentExposure().Add(m.pendingExposure).Add(exposure)
	if total.GreaterThan(m.limits.MaxTotalExposure) {
		return CheckResult{Decision: Rejected, Reason: "exposure exceeds total limit"}
	}

	m.pendingExposure = m.pendingExposure.Add(exposure)
	m.pendingExecutionCount++

	return CheckResult{
		Decision: Approved,
		Handle: ReservationHandle{
			marketID: opp.MarketID,
			exposure: exposure,
			once:     &sync.Once{},
		},
	}
}

// Release returns a handle's reserved exposure to the pool. Calling
// Release more than once on the same handle is a programmer error logged
// at Warn rather than a panic, matching the defensive style of a long-lived
// service that must not crash on an executor bug.
func (m *Manager) Release(h ReservationHandle) {
	if h.once == nil {
		return
	}
	released := false
	h.once.Do(func() {
		m.pendingMu.Lock()
		m.pendingExposure = m.pendingExposure.Sub(h.exposure)
		m.pendingExecutionCount--
		m.pendingMu.Unlock()
		released = true
	})
	if !released {
		m.logger.Warn("risk: reservation released more than once", "market_id", h.marketID)
	}
}

// PendingExecutionCount reports the number of reservations currently
// outstanding, for diagnostics and tests.
func (m *Manager) PendingExecutionCount() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingExecutionCount
}

// Activate trips the circuit breaker, causing every subsequent Check to
// reject until Reset. Re-activating an already-active breaker overwrites
// the reason rather than erroring.
func (m *Manager) Activate(reason string) {
	m.breakerMu.Lock()
	defer m.breakerMu.Unlock()
	m.breaker.active = true
	m.breaker.reason = reason
	m.logger.Warn("risk: circuit breaker activated", "reason", reason)
}

// Reset clears the circuit breaker.
func (m *Manager) Reset() {
	m.breakerMu.Lock()
	defer m.breakerMu.Unlock()
	m.breaker.active = false
	m.breaker.reason = ""
	m.logger.Info("risk: circuit breaker reset")
}

// IsActive reports whether the circuit breaker is currently tripped.
func (m *Manager) IsActive() bool {
	m.breakerMu.RLock()
	defer m.breakerMu.RUnlock()
	return m.breaker.active
}

// Reason returns the circuit breaker's current trip reason, or "" if not
// active.
func (m *Manager) Reason() string {
	m.breakerMu.RLock()
	defer m.breakerMu.RUnlock()
	return m.breaker.reason
}

// Snapshot is a point-in-time read of the risk gate's exposure and breaker
// state, for the dashboard and periodic notifications.
type Snapshot struct {
	TotalExposure   domain.Money
	PendingExposure domain.Money
	PendingCount    int
	BreakerActive   bool
	BreakerReason   string
	MarketExposures map[ids.MarketId]domain.Money
}

// Snapshot reports the manager's current state without mutating it.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	exposures := make(map[ids.MarketId]domain.Money, len(m.positions))
	total := domain.Zero()
	for mkt, exp := range m.positions {
		exposures[mkt] = exp
		total = total.Add(exp)
	}
	m.mu.RUnlock()

	m.pendingMu.Lock()
	pending := m.pendingExposure
	pendingCount := m.pendingExecutionCount
	m.pendingMu.Unlock()

	m.breakerMu.RLock()
	active := m.breaker.active
	reason := m.breaker.reason
	m.breakerMu.RUnlock()

	return Snapshot{
		TotalExposure:   total,
		PendingExposure: pending,
		PendingCount:    pendingCount,
		BreakerActive:   active,
		BreakerReason:   reason,
		MarketExposures: exposures,
	}
}
