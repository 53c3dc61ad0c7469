package server

import (
	"testing"
	"time"
)

func TestClientRateLimiterThrottlesPerClient(t *testing.T) {
	limiter := newClientRateLimiter(1, 2)

	if !limiter.allow("10.0.0.1") {
		t.Fatalf("expected first request to pass")
	}
	if !limiter.allow("10.0.0.1") {
		t.Fatalf("expected burst request to pass")
	}
	if limiter.allow("10.0.0.1") {
		t.Fatalf("expected request over burst to be throttled")
	}

	if !limiter.allow("10.0.0.2") {
		t.Fatalf("expected unrelated client to pass")
	}
}

func TestClientRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := newClientRateLimiter(1, 1)
	now := time.Unix(1700000000, 0)
	limiter.clock = func() time.Time { return now }

	limiter.allow("10.0.0.1")
	now = now.Add(clientLimiterIdleTTL + time.Minute)
	limiter.allow("10.0.0.2")

	limiter.mu.Lock()
	_, stale := limiter.clients["10.0.0.1"]
	limiter.mu.Unlock()
	if stale {
		t.Fatalf("expected idle client to be evicted")
	}
}
