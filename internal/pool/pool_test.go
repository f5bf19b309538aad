package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/reconnect"
	"github.com/edgelord/edgelord/pkg/ids"
)

func TestChunkTokensEvenSplit(t *testing.T) {
	t.Parallel()
	tokens := []ids.TokenId{"a", "b", "c", "d"}
	chunks := chunkTokens(tokens, 2, 2)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 2 {
		t.Fatalf("chunks = %v, want two chunks of 2", chunks)
	}
}

func TestChunkTokensOverflowAppendsToLast(t *testing.T) {
	t.Parallel()
	tokens := make([]ids.TokenId, 10)
	for i := range tokens {
		tokens[i] = ids.TokenId(string(rune('a' + i)))
	}
	chunks := chunkTokens(tokens, 2, 3) // cap = 6, overflow = 4
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if len(chunks[0]) != 3 {
		t.Fatalf("chunks[0] len = %d, want 3", len(chunks[0]))
	}
	if len(chunks[1]) != 7 {
		t.Fatalf("chunks[1] len = %d, want 7 (3 + 4 overflow)", len(chunks[1]))
	}
}

func TestChunkTokensEmpty(t *testing.T) {
	t.Parallel()
	if chunks := chunkTokens(nil, 5, 5); chunks != nil {
		t.Fatalf("chunkTokens(nil) = %v, want nil", chunks)
	}
}

func TestConfigValidateRejectsPreemptiveGEQttl(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.PreemptiveReconnectSecs = cfg.ConnectionTTLSecs
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject preemptive reconnect >= ttl")
	}
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

// fakeConn emits one message then blocks until ctx is cancelled, simulating
// a healthy long-lived connection.
type fakeConn struct {
	msg  []byte
	sent bool
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	if !c.sent {
		c.sent = true
		return c.msg, nil
	}
	<-ctx.Done()
	return nil, errors.New("closed")
}

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct {
	tokens []ids.TokenId
}

func (d *fakeDialer) Dial(ctx context.Context) (reconnect.Conn, error) {
	return &fakeConn{msg: []byte(string(d.tokens[0]))}, nil
}

func TestPoolSubscribeDeliversEvents(t *testing.T) {
	t.Parallel()

	factory := func(tokens []ids.TokenId) reconnect.Dialer {
		return &fakeDialer{tokens: tokens}
	}
	decode := func(raw []byte) (domain.MarketEvent, error) {
		return domain.BookSnapshot{TokenID: ids.TokenId(raw)}, nil
	}

	cfg := DefaultConfig()
	cfg.MaxConnections = 2
	cfg.SubscriptionsPerConnection = 1
	cfg.HealthCheckIntervalSecs = 3600 // keep the management loop quiet for this test

	p, err := New(cfg, factory, decode, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Subscribe(ctx, []ids.TokenId{"tok-a", "tok-b"}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	seen := make(map[ids.TokenId]bool)
	for len(seen) < 2 {
		select {
		case evt := <-p.Events():
			snap, ok := evt.(domain.BookSnapshot)
			if !ok {
				t.Fatalf("event = %T, want domain.BookSnapshot", evt)
			}
			seen[snap.TokenID] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", seen)
		}
	}

	stats := p.Stats()
	if stats.ActiveConnections != 2 {
		t.Errorf("ActiveConnections = %d, want 2", stats.ActiveConnections)
	}

	p.Close()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxConnections = 0
	if _, err := New(cfg, nil, nil, nil); err == nil {
		t.Fatal("expected New to reject an invalid config")
	}
}

// floodConn emits messages as fast as it is asked to, never blocking until
// ctx is cancelled. Used to simulate sustained load for TTL rotation and
// backpressure tests.
type floodConn struct {
	tag ids.TokenId
}

func (c *floodConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, errors.New("closed")
	case <-time.After(time.Millisecond):
		return []byte(c.tag), nil
	}
}

func (c *floodConn) Close() error { return nil }

type floodDialer struct {
	tokens []ids.TokenId
}

func (d *floodDialer) Dial(ctx context.Context) (reconnect.Conn, error) {
	return &floodConn{tag: d.tokens[0]}, nil
}

// TestPoolRotatesConnectionsUnderLoad exercises the management goroutine's
// TTL-driven rotation with a short-lived connection that never goes idle:
// the health-check loop must still retire and replace it once its age
// crosses ConnectionTTLSecs-PreemptiveReconnectSecs, and the merged event
// stream must keep flowing across the handoff.
func TestPoolRotatesConnectionsUnderLoad(t *testing.T) {
	t.Parallel()

	factory := func(tokens []ids.TokenId) reconnect.Dialer {
		return &floodDialer{tokens: tokens}
	}
	decode := func(raw []byte) (domain.MarketEvent, error) {
		return domain.BookSnapshot{TokenID: ids.TokenId(raw)}, nil
	}

	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	cfg.SubscriptionsPerConnection = 1
	cfg.ChannelCapacity = 1000
	cfg.ConnectionTTLSecs = 1
	cfg.PreemptiveReconnectSecs = 0
	cfg.HealthCheckIntervalSecs = 1
	cfg.MaxSilentSecs = 60

	p, err := New(cfg, factory, decode, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Subscribe(ctx, []ids.TokenId{"tok-a"}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Drain continuously so the flood doesn't overflow the channel while we
	// wait for a rotation to happen.
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.Events():
			}
		}
	}()

	deadline := time.After(4 * time.Second)
	for {
		if p.Stats().TotalRotations >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a TTL rotation, stats = %+v", p.Stats())
		case <-time.After(50 * time.Millisecond):
		}
	}

	if active := p.Stats().ActiveConnections; active != 1 {
		t.Errorf("ActiveConnections after rotation = %d, want 1", active)
	}

	p.Close()
	cancel()
	<-drainDone
}

// TestPoolDropsEventsUnderBackpressure floods a pool whose channel capacity
// is far smaller than the producer's throughput and with no consumer
// draining Events(), and asserts the pool counts dropped events rather than
// blocking the connection goroutine forever.
func TestPoolDropsEventsUnderBackpressure(t *testing.T) {
	t.Parallel()

	factory := func(tokens []ids.TokenId) reconnect.Dialer {
		return &floodDialer{tokens: tokens}
	}
	decode := func(raw []byte) (domain.MarketEvent, error) {
		return domain.BookSnapshot{TokenID: ids.TokenId(raw)}, nil
	}

	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	cfg.SubscriptionsPerConnection = 1
	cfg.ChannelCapacity = 1
	cfg.HealthCheckIntervalSecs = 3600 // isolate backpressure from rotation

	p, err := New(cfg, factory, decode, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Subscribe(ctx, []ids.TokenId{"tok-a"}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Deliberately do not read p.Events(): the channel fills after one
	// message and every subsequent flood message must be dropped, not
	// block the connection goroutine.
	deadline := time.After(2 * time.Second)
	for {
		if p.Stats().EventsDropped > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for EventsDropped > 0, stats = %+v", p.Stats())
		case <-time.After(20 * time.Millisecond):
		}
	}

	p.Close()
}
