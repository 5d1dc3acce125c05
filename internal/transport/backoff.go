// ABOUTME: Reconnect backoff and endpoint failover policy
// ABOUTME: Pure state, no timers; the session loop drives it
package transport

import "time"

// Backoff yields reconnect delays doubling from min up to max.
type Backoff struct {
	min, max time.Duration
	cur      time.Duration
}

// NewBackoff creates a backoff starting at min and capped at max.
func NewBackoff(min, max time.Duration) *Backoff {
	return &Backoff{min: min, max: max}
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
	} else {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	return b.cur
}

// Reset restarts the sequence after a successful connection.
func (b *Backoff) Reset() { b.cur = 0 }

// endpointPicker chooses which broker to try next. After failAfter
// consecutive failures it fails over to the next endpoint; a successful
// session resets it back to the primary.
type endpointPicker struct {
	endpoints []string
	failAfter int
	idx       int
	fails     int
}

func newEndpointPicker(endpoints []string, failAfter int) *endpointPicker {
	return &endpointPicker{endpoints: endpoints, failAfter: failAfter}
}

// Current returns the endpoint to attempt.
func (p *endpointPicker) Current() string { return p.endpoints[p.idx] }

// Failure records a failed attempt and reports whether the picker moved to
// another endpoint.
func (p *endpointPicker) Failure() bool {
	p.fails++
	if len(p.endpoints) < 2 || p.fails < p.failAfter {
		return false
	}
	p.fails = 0
	p.idx = (p.idx + 1) % len(p.endpoints)
	return true
}

// Success resets the picker to the primary endpoint.
func (p *endpointPicker) Success() {
	p.fails = 0
	p.idx = 0
}
