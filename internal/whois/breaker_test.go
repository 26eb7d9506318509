// ABOUTME: Tests for the WHOIS circuit breaker
// ABOUTME: Opening on consecutive failures, cooldown probing, and reset

package whois

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := newBreaker(breakerConfig{maxFailures: 3, cooldown: time.Hour})
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	for i := 0; i < 3; i++ {
		if err := b.execute(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want boom", i+1, err)
		}
	}

	if !b.isOpen() {
		t.Fatal("breaker should be open after threshold failures")
	}
	if err := b.execute(context.Background(), fail); !errors.Is(err, errBreakerOpen) {
		t.Errorf("error = %v, want errBreakerOpen", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	b := newBreaker(breakerConfig{maxFailures: 2, cooldown: time.Hour})
	boom := errors.New("boom")

	b.execute(context.Background(), func(context.Context) error { return boom })
	b.execute(context.Background(), func(context.Context) error { return nil })
	b.execute(context.Background(), func(context.Context) error { return boom })

	if b.isOpen() {
		t.Error("a success in between must reset the failure count")
	}
}

func TestBreaker_ProbesAfterCooldown(t *testing.T) {
	t.Parallel()

	b := newBreaker(breakerConfig{maxFailures: 1, cooldown: 10 * time.Millisecond})
	boom := errors.New("boom")

	b.execute(context.Background(), func(context.Context) error { return boom })
	if !b.isOpen() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)

	// The probe goes through and its success closes the breaker.
	if err := b.execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if b.isOpen() {
		t.Error("successful probe should close the breaker")
	}
}
