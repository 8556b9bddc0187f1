// Package ratelimit provides a fixed-window request limiter keyed by
// API name, shared by all destination adapters.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"syncq/configs"
)

// windows that saw no traffic for a full period plus this buffer are
// dropped by the janitor
const staleWindowBuffer = 10 * time.Second

type window struct {
	count     int
	startedAt time.Time
}

// Limiter counts requests per API name within a fixed window. When the
// window expires the count resets; until then requests beyond the
// configured maximum are denied with the time left in the window.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     configs.RateLimitConfig
	now     func() time.Time
	ticker  *time.Ticker
	done    chan struct{}
}

func NewLimiter(cfg configs.RateLimitConfig) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		cfg:     cfg,
		now:     time.Now,
		ticker:  time.NewTicker(time.Duration(cfg.PeriodMs) * time.Millisecond),
		done:    make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.dropStaleWindows()
			case <-l.done:
				return
			}
		}
	}()

	return l
}

// Allow reports whether a call to the named API may proceed now. When
// denied, retryIn is the time until the current window resets.
func (l *Limiter) Allow(apiName string) (bool, time.Duration) {
	if !l.cfg.Enabled {
		return true, 0
	}

	period := time.Duration(l.cfg.PeriodMs) * time.Millisecond

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[apiName]
	if w == nil || now.Sub(w.startedAt) >= period {
		l.windows[apiName] = &window{count: 1, startedAt: now}
		return true, 0
	}

	if w.count >= l.cfg.MaxRequests {
		return false, w.startedAt.Add(period).Sub(now)
	}

	w.count++
	return true, 0
}

func (l *Limiter) dropStaleWindows() {
	period := time.Duration(l.cfg.PeriodMs) * time.Millisecond

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for apiName, w := range l.windows {
		if now.Sub(w.startedAt) >= period+staleWindowBuffer {
			delete(l.windows, apiName)
		}
	}
}

func (l *Limiter) Close() {
	log.Debug().Msg("ratelimit: closing limiter")
	l.ticker.Stop()
	close(l.done)
}
