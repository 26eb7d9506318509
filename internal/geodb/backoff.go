// ABOUTME: Exponential backoff with jitter for in-attempt fetch retries
// ABOUTME: Bounded delays derived from the configured retry policy

package geodb

import (
	"math/rand/v2"
	"time"

	"github.com/needful-apps/Gunter/internal/config"
)

// backoff yields successive retry delays for one refresh attempt.
// Not safe for concurrent use; each refresh creates its own.
type backoff struct {
	cfg     config.RetryConfig
	attempt int
	delay   time.Duration
}

// newBackoff creates a backoff from the retry policy. Zero-valued
// fields fall back to the policy defaults in config.DefaultConfig.
func newBackoff(cfg config.RetryConfig) *backoff {
	def := config.DefaultConfig().Database.Retry
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = def.Multiplier
	}

	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// next returns the delay before the next retry, or false once the
// retry budget is spent.
func (b *backoff) next() (time.Duration, bool) {
	if b.attempt >= b.cfg.MaxRetries {
		return 0, false
	}
	b.attempt++

	d := b.delay

	grown := time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if grown > b.cfg.MaxDelay {
		grown = b.cfg.MaxDelay
	}
	b.delay = grown

	if b.cfg.JitterFraction > 0 {
		span := float64(d) * b.cfg.JitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * span)
	}

	return d, true
}

// attempts returns how many retries have been handed out.
func (b *backoff) attempts() int {
	return b.attempt
}
