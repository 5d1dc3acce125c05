// ABOUTME: Tests for reconnect backoff and broker failover policy
// ABOUTME: Pure-state tests, no network involved
package transport

import (
	"testing"
	"time"
)

func TestBackoffDoubling(t *testing.T) {
	b := NewBackoff(5*time.Second, 2*time.Minute)

	expected := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		2 * time.Minute, // capped
		2 * time.Minute, // stays capped
	}
	for i, want := range expected {
		if got := b.Next(); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(5*time.Second, 2*time.Minute)
	b.Next()
	b.Next()
	b.Reset()
	if got := b.Next(); got != 5*time.Second {
		t.Errorf("expected floor after reset, got %v", got)
	}
}

func TestBackoffNeverBelowFloor(t *testing.T) {
	b := NewBackoff(5*time.Second, 2*time.Minute)
	for i := 0; i < 20; i++ {
		if got := b.Next(); got < 5*time.Second {
			t.Fatalf("attempt %d below floor: %v", i, got)
		}
	}
}

func TestPickerFailoverAfterThreshold(t *testing.T) {
	p := newEndpointPicker([]string{"tcp://primary:1883", "tcp://secondary:1883"}, 3)

	for i := 0; i < 2; i++ {
		if p.Failure() {
			t.Fatalf("switched after only %d failures", i+1)
		}
		if p.Current() != "tcp://primary:1883" {
			t.Fatalf("left primary after %d failures", i+1)
		}
	}
	if !p.Failure() {
		t.Fatal("expected failover on the third failure")
	}
	if p.Current() != "tcp://secondary:1883" {
		t.Errorf("expected secondary, got %s", p.Current())
	}
}

func TestPickerSuccessResetsToPrimary(t *testing.T) {
	p := newEndpointPicker([]string{"tcp://primary:1883", "tcp://secondary:1883"}, 2)
	p.Failure()
	p.Failure() // switched to secondary
	if p.Current() != "tcp://secondary:1883" {
		t.Fatalf("expected secondary, got %s", p.Current())
	}

	p.Success()
	if p.Current() != "tcp://primary:1883" {
		t.Errorf("expected primary after a successful session, got %s", p.Current())
	}
	// The failure counter also restarts.
	if p.Failure() {
		t.Error("one failure after reset should not switch")
	}
}

func TestPickerSingleEndpointNeverSwitches(t *testing.T) {
	p := newEndpointPicker([]string{"tcp://only:1883"}, 2)
	for i := 0; i < 10; i++ {
		if p.Failure() {
			t.Fatal("single endpoint must never report a switch")
		}
		if p.Current() != "tcp://only:1883" {
			t.Fatal("endpoint changed")
		}
	}
}
