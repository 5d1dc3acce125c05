// ABOUTME: Tests for the status heartbeat
// ABOUTME: Uses a fake publisher, no broker needed
package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/device"
)

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	payloads  [][]byte
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePublisher) setConnected(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = v
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func testHeartbeat(pub *fakePublisher) *Heartbeat {
	h := New(pub, device.Info{ID: "dev-1", HardwareID: "hw-abc", Firmware: "0.9.2"},
		"rapidreach/status/dev-1", time.Minute)
	h.uptime = func() uint64 { return 3600 }
	h.ip = func() string { return "10.0.0.5" }
	h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return h
}

func TestHeartbeatPayload(t *testing.T) {
	pub := &fakePublisher{connected: true}
	h := testHeartbeat(pub)

	if err := h.publishOnce(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.count())
	}

	var report Report
	if err := json.Unmarshal(pub.payloads[0], &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.DeviceID != "dev-1" || report.HardwareID != "hw-abc" {
		t.Errorf("identity wrong: %+v", report)
	}
	if report.Firmware != "0.9.2" || report.IP != "10.0.0.5" {
		t.Errorf("facts wrong: %+v", report)
	}
	if report.UptimeSec != 3600 || report.Seq != 1 || report.Timestamp != 1700000000 {
		t.Errorf("counters wrong: %+v", report)
	}
}

func TestHeartbeatSequenceIncrements(t *testing.T) {
	pub := &fakePublisher{connected: true}
	h := testHeartbeat(pub)

	for i := 0; i < 3; i++ {
		if err := h.publishOnce(); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	var last Report
	if err := json.Unmarshal(pub.payloads[2], &last); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if last.Seq != 3 {
		t.Errorf("expected seq 3, got %d", last.Seq)
	}
}

func TestHeartbeatSkipsWhileDisconnected(t *testing.T) {
	pub := &fakePublisher{}
	h := testHeartbeat(pub)

	if err := h.publishOnce(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.count() != 0 {
		t.Errorf("expected no publishes while disconnected, got %d", pub.count())
	}

	// Reconnecting resumes the beat without skipped sequence numbers.
	pub.setConnected(true)
	h.publishOnce()
	var report Report
	json.Unmarshal(pub.payloads[0], &report)
	if report.Seq != 1 {
		t.Errorf("expected seq 1 after reconnect, got %d", report.Seq)
	}
}
