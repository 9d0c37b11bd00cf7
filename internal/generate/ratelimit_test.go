package generate

import (
	"testing"
	"time"
)

func TestRateLimiterEnforcesLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("user") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("user") {
		t.Error("request over the limit should be rejected")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("a") {
		t.Fatal("first request for key a should be allowed")
	}
	if !rl.Allow("b") {
		t.Error("key b must not be affected by key a's usage")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 50*time.Millisecond)

	if !rl.Allow("user") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("user") {
		t.Fatal("second immediate request should be rejected")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("user") {
		t.Error("request after the window expired should be allowed")
	}
}
