// ABOUTME: Minimal circuit breaker guarding upstream WHOIS registries
// ABOUTME: Opens after consecutive failures, probes again after a cooldown

package whois

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errBreakerOpen is returned while the breaker rejects calls.
var errBreakerOpen = errors.New("whois registry temporarily unavailable")

type breakerConfig struct {
	// maxFailures is the consecutive-failure threshold to open.
	maxFailures int

	// cooldown is how long to reject calls before probing again.
	cooldown time.Duration
}

// breaker is a small closed/open circuit breaker. After maxFailures
// consecutive upstream failures it rejects calls for the cooldown,
// then lets a single probe through.
type breaker struct {
	cfg breakerConfig

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

func newBreaker(cfg breakerConfig) *breaker {
	if cfg.maxFailures == 0 {
		cfg.maxFailures = 5
	}
	if cfg.cooldown == 0 {
		cfg.cooldown = 30 * time.Second
	}
	return &breaker{cfg: cfg}
}

// execute runs fn unless the breaker is open.
func (b *breaker) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return errBreakerOpen
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

// allow reports whether a call may proceed, transitioning from open to
// a probing state after the cooldown.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if time.Since(b.openedAt) >= b.cfg.cooldown {
		// Probe: stay open but let this call through; a success
		// closes the breaker.
		return true
	}
	return false
}

func (b *breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.failures >= b.cfg.maxFailures {
		b.open = true
		b.openedAt = time.Now()
	}
}

// isOpen reports the breaker state for tests and status reads.
func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
