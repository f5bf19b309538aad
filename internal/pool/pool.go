// Package pool manages a fixed set of underlying market data connections,
// rotating and healing them transparently behind a single merged event
// stream.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/reconnect"
	"github.com/edgelord/edgelord/pkg/ids"
)

const handoffPollInterval = 50 * time.Millisecond
const drainGracePeriod = 100 * time.Millisecond

// Config controls pool sizing and health-check cadence.
type Config struct {
	MaxConnections             int
	SubscriptionsPerConnection int
	ConnectionTTLSecs          int64
	PreemptiveReconnectSecs    int64
	HealthCheckIntervalSecs    int64
	MaxSilentSecs              int64
	ChannelCapacity            int
	Reconnect                  reconnect.Config
}

// DefaultConfig returns working defaults: 10 connections of 500 tokens
// each, rotated 30s before their 2-minute TTL, health-checked every 30s.
func DefaultConfig() Config {
	return Config{
		MaxConnections:             10,
		SubscriptionsPerConnection: 500,
		ConnectionTTLSecs:          120,
		PreemptiveReconnectSecs:    30,
		HealthCheckIntervalSecs:    30,
		MaxSilentSecs:              60,
		ChannelCapacity:            10000,
		Reconnect:                  reconnect.DefaultConfig(),
	}
}

// Validate fails fast on a configuration that cannot produce a working pool.
func (c Config) Validate() error {
	if c.ConnectionTTLSecs <= 0 {
		return fmt.Errorf("pool config: connection ttl must be positive, got %d", c.ConnectionTTLSecs)
	}
	if c.PreemptiveReconnectSecs >= c.ConnectionTTLSecs {
		return fmt.Errorf("pool config: preemptive reconnect (%d) must be less than connection ttl (%d)", c.PreemptiveReconnectSecs, c.ConnectionTTLSecs)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("pool config: max connections must be positive, got %d", c.MaxConnections)
	}
	if c.SubscriptionsPerConnection <= 0 {
		return fmt.Errorf("pool config: subscriptions per connection must be positive, got %d", c.SubscriptionsPerConnection)
	}
	if c.HealthCheckIntervalSecs <= 0 {
		return fmt.Errorf("pool config: health check interval must be positive, got %d", c.HealthCheckIntervalSecs)
	}
	if c.MaxSilentSecs <= 0 {
		return fmt.Errorf("pool config: max silent duration must be positive, got %d", c.MaxSilentSecs)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("pool config: channel capacity must be positive, got %d", c.ChannelCapacity)
	}
	if err := c.Reconnect.Validate(); err != nil {
		return fmt.Errorf("pool config: %w", err)
	}
	return nil
}

func (c Config) handoffTimeout() time.Duration {
	ttl := time.Duration(c.ConnectionTTLSecs) * time.Second
	if ttl < 30*time.Second {
		return 30 * time.Second
	}
	return ttl
}

// ConnFactory dials a new underlying connection carrying the given tokens.
type ConnFactory func(tokens []ids.TokenId) reconnect.Dialer

// Decoder parses a raw message into a MarketEvent.
type Decoder func(raw []byte) (domain.MarketEvent, error)

// PoolStats are the pool's externally observable health counters.
type PoolStats struct {
	ActiveConnections int64
	TotalRotations    int64
	TotalRestarts     int64
	EventsDropped     int64
}

type connSlot struct {
	tokens    []ids.TokenId
	spawnedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	lastEventAt atomic.Int64 // unix millis
	exited      atomic.Bool
}

func newConnSlot(tokens []ids.TokenId) *connSlot {
	return &connSlot{tokens: tokens, spawnedAt: time.Now(), done: make(chan struct{})}
}

// Pool presents a single merged event stream sourced from up to
// MaxConnections independent underlying connections.
type Pool struct {
	cfg     Config
	factory ConnFactory
	decode  Decoder
	logger  *slog.Logger

	events chan domain.MarketEvent

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mgmtDone chan struct{}

	connsMu sync.Mutex
	conns   []*connSlot

	totalRotations atomic.Int64
	totalRestarts  atomic.Int64
	eventsDropped  atomic.Int64
}

// New constructs a Pool. cfg must already be valid (see Validate).
func New(cfg Config, factory ConnFactory, decode Decoder, logger *slog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:     cfg,
		factory: factory,
		decode:  decode,
		logger:  logger,
		events:  make(chan domain.MarketEvent, cfg.ChannelCapacity),
	}, nil
}

// Events returns the merged event channel.
func (p *Pool) Events() <-chan domain.MarketEvent {
	return p.events
}

// Stats returns a snapshot of the pool's health counters.
func (p *Pool) Stats() PoolStats {
	p.connsMu.Lock()
	active := int64(0)
	for _, c := range p.conns {
		if !c.exited.Load() {
			active++
		}
	}
	p.connsMu.Unlock()

	return PoolStats{
		ActiveConnections: active,
		TotalRotations:    p.totalRotations.Load(),
		TotalRestarts:     p.totalRestarts.Load(),
		EventsDropped:     p.eventsDropped.Load(),
	}
}

// Subscribe tears down any existing connections and the management
// goroutine, then redistributes tokens across fresh connections and
// restarts management.
func (p *Pool) Subscribe(ctx context.Context, tokens []ids.TokenId) error {
	p.teardown()

	poolCtx, cancel := context.WithCancel(ctx)
	p.ctx = poolCtx
	p.cancel = cancel

	chunks := chunkTokens(tokens, p.cfg.MaxConnections, p.cfg.SubscriptionsPerConnection)

	p.connsMu.Lock()
	p.conns = make([]*connSlot, len(chunks))
	p.connsMu.Unlock()

	for i, chunk := range chunks {
		slot := newConnSlot(chunk)
		p.connsMu.Lock()
		p.conns[i] = slot
		p.connsMu.Unlock()
		p.spawn(poolCtx, slot)
	}

	p.mgmtDone = make(chan struct{})
	p.wg.Add(1)
	go p.manage(poolCtx)

	return nil
}

// chunkTokens splits tokens into up to maxConns chunks of at most perConn
// each. If tokens overflow maxConns*perConn, the overflow is appended to
// the last chunk rather than dropped.
func chunkTokens(tokens []ids.TokenId, maxConns, perConn int) [][]ids.TokenId {
	if len(tokens) == 0 {
		return nil
	}
	capTotal := maxConns * perConn
	head := tokens
	var overflow []ids.TokenId
	if len(tokens) > capTotal {
		head = tokens[:capTotal]
		overflow = tokens[capTotal:]
	}

	var chunks [][]ids.TokenId
	for len(head) > 0 {
		n := perConn
		if n > len(head) {
			n = len(head)
		}
		chunks = append(chunks, append([]ids.TokenId(nil), head[:n]...))
		head = head[n:]
	}
	if len(overflow) > 0 && len(chunks) > 0 {
		last := len(chunks) - 1
		chunks[last] = append(chunks[last], overflow...)
	}
	return chunks
}

// spawn starts the per-connection goroutine for slot, wrapping the raw
// dialer in a reconnect.Stream.
func (p *Pool) spawn(ctx context.Context, slot *connSlot) {
	connCtx, cancel := context.WithCancel(ctx)
	slot.cancel = cancel
	slot.lastEventAt.Store(time.Now().UnixMilli())

	dialer := p.factory(slot.tokens)
	stream := reconnect.New(dialer, p.cfg.Reconnect, p.logger)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(slot.done)
		defer slot.exited.Store(true)

		stream.Run(connCtx,
			func(raw []byte) {
				slot.lastEventAt.Store(time.Now().UnixMilli())
				evt, err := p.decode(raw)
				if err != nil {
					p.logger.Debug("failed to decode market message", "error", err)
					return
				}
				select {
				case p.events <- evt:
				default:
					p.eventsDropped.Add(1)
					poolEventsDropped.Inc()
					p.logger.Warn("pool event channel full, dropping event")
				}
			},
			nil,
			func(reason string) {
				p.logger.Debug("connection disconnected", "reason", reason)
			},
		)
	}()
}

type rotationReason int

const (
	reasonNone rotationReason = iota
	reasonCrashed
	reasonTtl
	reasonSilent
)

// manage runs the control-plane health-check loop.
func (p *Pool) manage(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(time.Duration(p.cfg.HealthCheckIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.healthCheck(ctx)
		}
	}
}

func (p *Pool) healthCheck(ctx context.Context) {
	now := time.Now()

	p.connsMu.Lock()
	targets := make(map[int]rotationReason)
	for i, slot := range p.conns {
		if reason := p.classify(slot, now); reason != reasonNone {
			targets[i] = reason
		}
	}
	p.connsMu.Unlock()

	var wg sync.WaitGroup
	for idx, reason := range targets {
		idx, reason := idx, reason
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.replace(ctx, idx, reason)
		}()
	}
	wg.Wait()
}

func (p *Pool) classify(slot *connSlot, now time.Time) rotationReason {
	if slot.exited.Load() {
		return reasonCrashed
	}
	age := now.Sub(slot.spawnedAt)
	ttlThreshold := time.Duration(p.cfg.ConnectionTTLSecs-p.cfg.PreemptiveReconnectSecs) * time.Second
	if age >= ttlThreshold {
		return reasonTtl
	}
	lastEvent := slot.lastEventAt.Load()
	if lastEvent > 0 {
		silentFor := now.Sub(time.UnixMilli(lastEvent))
		if silentFor > time.Duration(p.cfg.MaxSilentSecs)*time.Second {
			return reasonSilent
		}
	}
	return reasonNone
}

// replace performs a zero-gap handoff of the connection at idx.
func (p *Pool) replace(ctx context.Context, idx int, reason rotationReason) {
	p.connsMu.Lock()
	old := p.conns[idx]
	tokens := append([]ids.TokenId(nil), old.tokens...)
	p.connsMu.Unlock()

	initialTs := time.Now().Add(-time.Millisecond)
	newSlot := newConnSlot(tokens)
	p.spawn(ctx, newSlot)

	deadline := time.Now().Add(p.cfg.handoffTimeout())
	ticker := time.NewTicker(handoffPollInterval)
	defer ticker.Stop()

confirmLoop:
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if newSlot.exited.Load() {
				// replacement died before confirming; abort and retry next tick
				return
			}
			if time.UnixMilli(newSlot.lastEventAt.Load()).After(initialTs) {
				break confirmLoop
			}
			if time.Now().After(deadline) {
				break confirmLoop
			}
		}
	}

	p.connsMu.Lock()
	p.conns[idx] = newSlot
	p.connsMu.Unlock()

	time.Sleep(drainGracePeriod)
	if old.cancel != nil {
		old.cancel()
	}

	if reason == reasonTtl {
		p.totalRotations.Add(1)
		poolRotationsTotal.Inc()
	} else {
		p.totalRestarts.Add(1)
		poolRestartsTotal.Inc()
	}
}

// teardown cancels every connection and the management goroutine, and
// waits for them to exit.
func (p *Pool) teardown() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.connsMu.Lock()
	p.conns = nil
	p.connsMu.Unlock()
}

// Close tears down the pool permanently. The event channel is left open
// since draining consumers may still be reading a final backlog; callers
// should stop reading once Events() stops producing after Close returns.
func (p *Pool) Close() {
	p.teardown()
}
