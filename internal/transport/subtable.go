// ABOUTME: Fixed-capacity subscription table
// ABOUTME: Remembers desired topics so each reconnect can replay them
package transport

import (
	"errors"
	"sync"
)

// ErrSubTableFull means the subscription table reached its capacity.
var ErrSubTableFull = errors.New("subscription table full")

type subTable struct {
	mu       sync.Mutex
	capacity int
	topics   []string
}

func newSubTable(capacity int) *subTable {
	return &subTable{capacity: capacity}
}

// add records a topic. Adding a topic that is already present is a no-op.
func (t *subTable) add(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.topics {
		if existing == topic {
			return nil
		}
	}
	if len(t.topics) >= t.capacity {
		return ErrSubTableFull
	}
	t.topics = append(t.topics, topic)
	return nil
}

func (t *subTable) remove(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.topics {
		if existing == topic {
			t.topics = append(t.topics[:i], t.topics[i+1:]...)
			return
		}
	}
}

// list returns a snapshot of the registered topics.
func (t *subTable) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.topics))
	copy(out, t.topics)
	return out
}
