// Package notify defines the Notifier port the orchestrator calls on every
// opportunity, execution outcome, risk rejection, circuit breaker
// transition, daily summary, and newly-discovered relation cluster. It
// carries no concrete delivery mechanism of its own — a real deployment's
// Telegram/Slack/email adapter is out of scope for this core and implements
// the same interface externally. Delivery is non-blocking: a sink that
// cannot keep up drops the event rather than stalling the event loop.
// internal/api's DashboardEvent is reused as the wire shape since it
// already names every event kind a sink needs to distinguish.
package notify

import (
	"context"
	"log/slog"

	"github.com/edgelord/edgelord/internal/api"
)

// Notifier is the port the orchestrator depends on. Notify must not block
// the caller for long; a slow sink should buffer or drop internally.
type Notifier interface {
	Notify(event api.DashboardEvent)
}

// LogNotifier logs every event at Info level. Useful standalone (no
// dashboard configured) and as one leg of a Multi fan-out.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify logs the event's type, market, and timestamp.
func (n *LogNotifier) Notify(event api.DashboardEvent) {
	level := slog.LevelInfo
	switch event.Type {
	case api.EventRiskRejected, api.EventCircuitBreakerActivated:
		level = slog.LevelWarn
	}
	n.logger.Log(context.Background(), level, "event", "type", event.Type, "market_id", event.MarketID, "data", event.Data)
}

// ChannelNotifier forwards every event to a bounded channel, dropping the
// event rather than blocking the caller when the channel is full.
type ChannelNotifier struct {
	out    chan<- api.DashboardEvent
	logger *slog.Logger
}

// NewChannelNotifier wraps out. out may be nil, in which case Notify is a
// no-op (dashboard disabled).
func NewChannelNotifier(out chan<- api.DashboardEvent, logger *slog.Logger) *ChannelNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelNotifier{out: out, logger: logger}
}

// Notify sends event to the wrapped channel without blocking.
func (n *ChannelNotifier) Notify(event api.DashboardEvent) {
	if n.out == nil {
		return
	}
	select {
	case n.out <- event:
	default:
		n.logger.Warn("notify: dashboard channel full, dropping event", "type", event.Type)
	}
}

// Multi fans a single Notify call out to every wrapped Notifier.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a Multi over ns, skipping any nil entries so callers can
// pass an optionally-nil dashboard notifier unconditionally.
func NewMulti(ns ...Notifier) *Multi {
	out := make([]Notifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Multi{notifiers: out}
}

// Notify calls every wrapped Notifier in turn.
func (m *Multi) Notify(event api.DashboardEvent) {
	for _, n := range m.notifiers {
		n.Notify(event)
	}
}
