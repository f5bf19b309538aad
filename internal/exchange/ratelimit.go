// ratelimit.go implements token-bucket rate limiting for the Polymarket CLOB
// and Gamma APIs.
//
// Polymarket enforces per-category rate limits measured in requests per
// 10-second windows. This file provides a smooth token-bucket implementation
// that refills continuously (rather than in 10s bursts) to avoid hitting
// hard limits.
//
// Four buckets are maintained, sized by internal/config.RateLimitConfig
// (defaults map to Polymarket's published 10s-window limits):
//   - Order:  POST /orders
//   - Cancel: DELETE /orders, /cancel-all, /cancel-market-orders
//   - Book:   GET /book
//   - Gamma:  GET requests to the Gamma markets API (scanner polling)
package exchange

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/edgelord/edgelord/internal/config"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // current available tokens (fractional allowed)
	capacity float64   // maximum burst size
	rate     float64   // tokens refilled per second
	lastTime time.Time // last time tokens were calculated

	name   string
	logger *slog.Logger
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// named attaches a bucket name and logger so Wait can report blocking.
func (tb *TokenBucket) named(name string, logger *slog.Logger) *TokenBucket {
	tb.name = name
	tb.logger = logger
	return tb
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	blocked := false
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			if blocked && tb.logger != nil {
				tb.logger.Debug("rate limit released", "bucket", tb.name)
			}
			return nil
		}

		// Calculate wait time for next token
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		if !blocked && tb.logger != nil {
			tb.logger.Warn("rate limit hit, blocking", "bucket", tb.name, "wait", wait)
		}
		blocked = true

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// RateLimiter groups token buckets by Polymarket API endpoint category.
// Each outbound call must call the appropriate bucket's Wait() before
// making the HTTP request.
type RateLimiter struct {
	Order  *TokenBucket // POST /orders — placing new orders
	Cancel *TokenBucket // DELETE /orders, /cancel-all, /cancel-market-orders
	Book   *TokenBucket // GET /book — order book reads
	Gamma  *TokenBucket // GET Gamma markets API — scanner discovery polling
}

// NewRateLimiter builds rate limiters from cfg, falling back to Polymarket's
// published limits for any bucket left unconfigured.
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	cfg = cfg.WithDefaults()
	return &RateLimiter{
		Order:  NewTokenBucket(cfg.Order.Capacity, cfg.Order.RatePerSec).named("order", logger),
		Cancel: NewTokenBucket(cfg.Cancel.Capacity, cfg.Cancel.RatePerSec).named("cancel", logger),
		Book:   NewTokenBucket(cfg.Book.Capacity, cfg.Book.RatePerSec).named("book", logger),
		Gamma:  NewTokenBucket(cfg.Gamma.Capacity, cfg.Gamma.RatePerSec).named("gamma", logger),
	}
}
