package embedding

import (
	"testing"
	"time"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, nil)
	if !b.Allow() {
		t.Fatal("expected a fresh breaker to allow calls")
	}
	if b.State() != "closed" {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, nil)
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != "closed" {
		t.Fatalf("expected closed below threshold, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatal("expected closed breaker to allow calls")
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, nil)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != "open" {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("expected open breaker to deny calls before cooldown elapses")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, nil)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != "closed" {
		t.Fatalf("expected success to reset the consecutive-failure counter, got %s", b.State())
	}
}

func TestBreakerHalfOpenDeniesConcurrentTrial(t *testing.T) {
	b := NewCircuitBreaker(1, time.Millisecond, nil)
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected the first call after cooldown to be allowed (half-open trial)")
	}
	if b.Allow() {
		t.Fatal("expected a second concurrent call to be denied while a trial is in flight")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(1, time.Millisecond, nil)
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	b.Allow() // consume the trial slot, entering half-open
	b.RecordFailure()

	if b.State() != "open" {
		t.Fatalf("expected a failed trial to reopen the breaker, got %s", b.State())
	}
}
