// ABOUTME: Periodic device status heartbeat over MQTT
// ABOUTME: Publishes identity, uptime and address; silent while offline
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/device"
)

// Publisher is the outbound half of the MQTT session.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Connected() bool
}

// Report is one status message.
type Report struct {
	DeviceID   string `json:"device_id"`
	HardwareID string `json:"hardware_id"`
	Firmware   string `json:"firmware"`
	IP         string `json:"ip,omitempty"`
	UptimeSec  uint64 `json:"uptime_sec"`
	Seq        uint64 `json:"seq"`
	Timestamp  int64  `json:"timestamp"`
}

// Heartbeat publishes a Report on a fixed interval while connected.
type Heartbeat struct {
	pub      Publisher
	info     device.Info
	topic    string
	interval time.Duration
	seq      uint64
	kick     chan struct{}

	uptime func() uint64
	ip     func() string
	now    func() time.Time
}

// New creates a heartbeat publishing to topic every interval.
func New(pub Publisher, info device.Info, topic string, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		pub:      pub,
		info:     info,
		topic:    topic,
		interval: interval,
		kick:     make(chan struct{}, 1),
		uptime:   device.Uptime,
		ip:       device.LocalIP,
		now:      time.Now,
	}
}

// Kick requests an immediate heartbeat, used right after a reconnect so
// the backend learns the device is back without waiting a full interval.
func (h *Heartbeat) Kick() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// Run publishes until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-h.kick:
		}
		if err := h.publishOnce(); err != nil {
			log.Printf("Status publish failed: %v", err)
		}
	}
}

func (h *Heartbeat) publishOnce() error {
	if !h.pub.Connected() {
		return nil
	}
	h.seq++
	report := Report{
		DeviceID:   h.info.ID,
		HardwareID: h.info.HardwareID,
		Firmware:   h.info.Firmware,
		IP:         h.ip(),
		UptimeSec:  h.uptime(),
		Seq:        h.seq,
		Timestamp:  h.now().Unix(),
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return h.pub.Publish(h.topic, payload)
}
