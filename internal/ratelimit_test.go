package internal

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := &rateLimiter{
		buckets: make(map[string]*bucket),
		rps:     1,
		burst:   1,
	}

	if !limiter.allow("client") {
		t.Fatalf("expected first request to be allowed")
	}
	if limiter.allow("client") {
		t.Fatalf("expected second request to be rate limited")
	}

	time.Sleep(1100 * time.Millisecond)

	if !limiter.allow("client") {
		t.Fatalf("expected request after refill to be allowed")
	}
}

func TestRateLimiterPrune(t *testing.T) {
	limiter := &rateLimiter{
		buckets: make(map[string]*bucket),
		rps:     1,
		burst:   1,
		ttl:     10 * time.Millisecond,
	}

	limiter.allow("stale")
	time.Sleep(20 * time.Millisecond)
	limiter.allow("fresh")

	limiter.mu.Lock()
	_, ok := limiter.buckets["stale"]
	limiter.mu.Unlock()
	if ok {
		t.Fatalf("expected stale bucket to be pruned")
	}
}
