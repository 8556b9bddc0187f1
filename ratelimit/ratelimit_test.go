package ratelimit

import (
	"testing"
	"time"

	"syncq/configs"
)

func newTestLimiter(maxRequests int, periodMs int64) (*Limiter, *time.Time) {
	limiter := NewLimiter(configs.RateLimitConfig{
		Enabled:     true,
		MaxRequests: maxRequests,
		PeriodMs:    periodMs,
	})
	current := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestLimiterAllowsUpToMaxWithinWindow(t *testing.T) {
	limiter, _ := newTestLimiter(3, 60_000)
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if allowed, _ := limiter.Allow("zapier"); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryIn := limiter.Allow("zapier")
	if allowed {
		t.Fatal("4th request within the window should be denied")
	}
	if retryIn != 60*time.Second {
		t.Errorf("expected full window remaining, got %v", retryIn)
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	limiter, current := newTestLimiter(1, 60_000)
	defer limiter.Close()

	if allowed, _ := limiter.Allow("zapier"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := limiter.Allow("zapier"); allowed {
		t.Fatal("second request within window should be denied")
	}

	*current = current.Add(61 * time.Second)

	if allowed, _ := limiter.Allow("zapier"); !allowed {
		t.Fatal("request after window reset should be allowed")
	}
}

func TestLimiterTracksApisIndependently(t *testing.T) {
	limiter, _ := newTestLimiter(1, 60_000)
	defer limiter.Close()

	if allowed, _ := limiter.Allow("zapier"); !allowed {
		t.Fatal("zapier request should be allowed")
	}
	if allowed, _ := limiter.Allow("quickbase"); !allowed {
		t.Fatal("quickbase has its own window")
	}
	if allowed, _ := limiter.Allow("zapier"); allowed {
		t.Fatal("second zapier request should be denied")
	}
}

func TestLimiterDisabled(t *testing.T) {
	limiter := NewLimiter(configs.RateLimitConfig{Enabled: false, MaxRequests: 1, PeriodMs: 60_000})
	defer limiter.Close()

	for i := 0; i < 100; i++ {
		if allowed, _ := limiter.Allow("zapier"); !allowed {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestLimiterDropsStaleWindows(t *testing.T) {
	limiter, current := newTestLimiter(5, 60_000)
	defer limiter.Close()

	limiter.Allow("zapier")
	limiter.Allow("quickbase")

	*current = current.Add(75 * time.Second)
	limiter.dropStaleWindows()

	limiter.mu.Lock()
	remaining := len(limiter.windows)
	limiter.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected stale windows dropped, %d left", remaining)
	}
}

func TestLimiterRetryInShrinksAsWindowAges(t *testing.T) {
	limiter, current := newTestLimiter(1, 60_000)
	defer limiter.Close()

	limiter.Allow("zapier")
	*current = current.Add(45 * time.Second)

	allowed, retryIn := limiter.Allow("zapier")
	if allowed {
		t.Fatal("request within window should be denied")
	}
	if retryIn != 15*time.Second {
		t.Errorf("expected 15s left in window, got %v", retryIn)
	}
}
