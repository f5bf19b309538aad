package exchange

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/edgelord/edgelord/internal/config"
)

func TestNewTokenBucketStartsFull(t *testing.T) {
	t.Parallel()
	tb := NewTokenBucket(10, 1)
	if tb.tokens != 10 {
		t.Errorf("tokens = %v, want 10", tb.tokens)
	}
}

func TestTokenBucketWaitImmediate(t *testing.T) {
	t.Parallel()
	tb := NewTokenBucket(5, 1)

	// Should consume tokens without blocking
	for i := 0; i < 5; i++ {
		start := time.Now()
		if err := tb.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() returned error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("Wait() took %v, expected immediate (token %d)", elapsed, i)
		}
	}
}

func TestTokenBucketWaitBlocks(t *testing.T) {
	t.Parallel()
	// 1 token capacity, refills at 10/sec → ~100ms per token
	tb := NewTokenBucket(1, 10)

	// Consume the single token
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Next Wait should block ~100ms
	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("expected blocking ~100ms, got %v", elapsed)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("blocked too long: %v", elapsed)
	}
}

func TestTokenBucketContextCancelled(t *testing.T) {
	t.Parallel()
	tb := NewTokenBucket(1, 0.1) // very slow refill

	// Exhaust the token
	_ = tb.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	if err == nil {
		t.Error("expected context error, got nil")
	}
}

func TestNewRateLimiterAppliesDefaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(config.RateLimitConfig{}, slog.Default())

	if rl.Order == nil || rl.Order.capacity != 350 {
		t.Fatalf("Order bucket = %+v, want capacity 350", rl.Order)
	}
	if rl.Cancel == nil || rl.Cancel.capacity != 300 {
		t.Fatalf("Cancel bucket = %+v, want capacity 300", rl.Cancel)
	}
	if rl.Book == nil || rl.Book.capacity != 150 {
		t.Fatalf("Book bucket = %+v, want capacity 150", rl.Book)
	}
	if rl.Gamma == nil || rl.Gamma.capacity != 100 {
		t.Fatalf("Gamma bucket = %+v, want capacity 100", rl.Gamma)
	}
}

func TestNewRateLimiterHonorsConfig(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(config.RateLimitConfig{
		Order: config.TokenBucketConfig{Capacity: 10, RatePerSec: 5},
	}, slog.Default())

	if rl.Order.capacity != 10 || rl.Order.rate != 5 {
		t.Fatalf("Order bucket = %+v, want capacity 10 rate 5", rl.Order)
	}
	// Unconfigured buckets still fall back to defaults.
	if rl.Book.capacity != 150 {
		t.Fatalf("Book bucket = %+v, want default capacity 150", rl.Book)
	}
}
