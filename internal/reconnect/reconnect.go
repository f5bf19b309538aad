// Package reconnect wraps a raw data stream factory with exponential
// backoff and a circuit breaker, so callers can treat a flaky connection
// as a single long-lived stream of reads.
package reconnect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config controls backoff and circuit-breaker behavior.
type Config struct {
	InitialDelayMs           int64
	MaxDelayMs               int64
	BackoffMultiplier        float64
	MaxConsecutiveFailures   int
	CircuitBreakerCooldownMs int64
}

// DefaultConfig returns conservative backoff defaults: 1s initial delay
// doubling to a 60s cap, with a 5-minute cooldown after 10 straight
// failures.
func DefaultConfig() Config {
	return Config{
		InitialDelayMs:           1000,
		MaxDelayMs:               60000,
		BackoffMultiplier:        2.0,
		MaxConsecutiveFailures:   10,
		CircuitBreakerCooldownMs: 300000,
	}
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	if c.InitialDelayMs <= 0 {
		return fmt.Errorf("reconnect: initial delay must be positive, got %d", c.InitialDelayMs)
	}
	if c.MaxDelayMs < c.InitialDelayMs {
		return fmt.Errorf("reconnect: max delay (%d) must be >= initial delay (%d)", c.MaxDelayMs, c.InitialDelayMs)
	}
	if c.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("reconnect: backoff multiplier must be > 1.0, got %f", c.BackoffMultiplier)
	}
	if c.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("reconnect: max consecutive failures must be positive, got %d", c.MaxConsecutiveFailures)
	}
	if c.CircuitBreakerCooldownMs <= 0 {
		return fmt.Errorf("reconnect: circuit breaker cooldown must be positive, got %d", c.CircuitBreakerCooldownMs)
	}
	return nil
}

// Dialer opens one raw connection to read from until it breaks.
// Read blocks until a message arrives or the connection dies, at which
// point it returns an error and the stream will not call Read on this
// Dialer's connection again (a fresh one is obtained via Dial).
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one live connection, as handed back by a Dialer.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Stream wraps a Dialer with reconnection. Run drives the stream until
// ctx is cancelled, invoking onMessage for every successfully read
// message and onConnected/onDisconnected around each (re)connection.
type Stream struct {
	dialer Dialer
	cfg    Config
	logger *slog.Logger
}

// New creates a Stream. cfg is validated and DefaultConfig() used on a
// zero value's invalid fields is the caller's responsibility — callers
// should call Validate() themselves before relying on defaults.
func New(dialer Dialer, cfg Config, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{dialer: dialer, cfg: cfg, logger: logger}
}

// Run connects and reads until ctx is cancelled. onMessage is called for
// every message read; onConnected is called after each successful dial;
// onDisconnected is called whenever the current connection breaks.
func (s *Stream) Run(ctx context.Context, onMessage func([]byte), onConnected func(), onDisconnected func(reason string)) error {
	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
			s.logger.Warn("circuit breaker tripped, cooling down",
				"consecutive_failures", consecutiveFailures,
				"cooldown_ms", s.cfg.CircuitBreakerCooldownMs)
			if !s.sleep(ctx, time.Duration(s.cfg.CircuitBreakerCooldownMs)*time.Millisecond) {
				return ctx.Err()
			}
			consecutiveFailures = 0
		}

		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			consecutiveFailures++
			delay := s.backoffDelay(consecutiveFailures)
			s.logger.Warn("dial failed, backing off", "error", err, "delay", delay, "attempt", consecutiveFailures)
			if !s.sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		consecutiveFailures = 0
		if onConnected != nil {
			onConnected()
		}

		readErr := s.readLoop(ctx, conn, onMessage)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		reason := "closed"
		if readErr != nil {
			reason = readErr.Error()
		}
		if onDisconnected != nil {
			onDisconnected(reason)
		}

		consecutiveFailures++
		delay := s.backoffDelay(consecutiveFailures)
		s.logger.Warn("stream disconnected, reconnecting", "reason", reason, "delay", delay)
		if !s.sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn Conn, onMessage func([]byte)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		onMessage(msg)
	}
}

// backoffDelay computes delay = min(initial * multiplier^(attempt-1), max).
func (s *Stream) backoffDelay(attempt int) time.Duration {
	raw := float64(s.cfg.InitialDelayMs) * math.Pow(s.cfg.BackoffMultiplier, float64(attempt-1))
	if raw > float64(s.cfg.MaxDelayMs) {
		raw = float64(s.cfg.MaxDelayMs)
	}
	return time.Duration(raw) * time.Millisecond
}

// sleep waits for d or ctx cancellation, returning false if cancelled.
func (s *Stream) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
