package infra

import (
	"testing"
	"time"
)

func testBreaker(failures, successes int, cooldown time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: failures,
		SuccessThreshold: successes,
		Timeout:          cooldown,
	})
}

func TestBreakerOpensAfterFailureRun(t *testing.T) {
	cb := testBreaker(3, 2, time.Minute)

	if !cb.Allow() {
		t.Fatal("closed breaker must allow")
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Error("two failures below threshold must not open")
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("state %v after threshold, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker must reject")
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	cb := testBreaker(2, 1, 20*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(30 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("cooldown elapsed, probe must be allowed")
	}
	if cb.State() != BreakerHalfOpen {
		t.Errorf("state %v, want half-open", cb.State())
	}

	// A failed probe reopens immediately.
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Errorf("state %v after failed probe, want open", cb.State())
	}
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	cb := testBreaker(2, 2, 10*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	cb.Allow()

	cb.RecordSuccess()
	if cb.State() != BreakerHalfOpen {
		t.Error("one probe success below threshold must stay half-open")
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Errorf("state %v after success run, want closed", cb.State())
	}
}

func TestBreakerSuccessClearsFailureRun(t *testing.T) {
	cb := testBreaker(3, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != BreakerClosed {
		t.Error("a success must reset the consecutive failure count")
	}
}

func TestBreakerReset(t *testing.T) {
	cb := testBreaker(1, 1, time.Minute)
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	cb.Reset()
	if cb.State() != BreakerClosed || !cb.Allow() {
		t.Error("reset breaker must be closed and allowing")
	}
}
