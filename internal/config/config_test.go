// ABOUTME: Tests for YAML configuration loading
// ABOUTME: Covers defaults, file overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.ReconnectMin != 5*time.Second {
		t.Errorf("expected 5s reconnect floor, got %v", cfg.MQTT.ReconnectMin)
	}
	if cfg.MQTT.ReconnectMax != 2*time.Minute {
		t.Errorf("expected 2m reconnect ceiling, got %v", cfg.MQTT.ReconnectMax)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 2 {
		t.Errorf("unexpected default output format: %d/%d", cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	if cfg.Audio.MaxVolume != 75 {
		t.Errorf("expected volume ceiling 75, got %d", cfg.Audio.MaxVolume)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestBlockSize(t *testing.T) {
	cfg := Default()
	// 48kHz stereo s16le at 20ms.
	if got := cfg.Audio.BlockSize(); got != 3840 {
		t.Errorf("expected 3840-byte blocks, got %d", got)
	}

	mono := Audio{SampleRate: 16000, Channels: 1, FrameMs: 10}
	if got := mono.BlockSize(); got != 320 {
		t.Errorf("expected 320-byte blocks, got %d", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
device_id: speaker-42
mqtt:
  broker: tcp://broker.example.com:1883
  secondary_broker: tcp://fallback.example.com:1883
audio:
  initial_volume: 25
queue:
  capacity: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DeviceID != "speaker-42" {
		t.Errorf("device id not loaded: %s", cfg.DeviceID)
	}
	if cfg.MQTT.Broker != "tcp://broker.example.com:1883" {
		t.Errorf("broker not loaded: %s", cfg.MQTT.Broker)
	}
	if cfg.Queue.Capacity != 4 {
		t.Errorf("queue capacity not loaded: %d", cfg.Queue.Capacity)
	}
	// Untouched fields keep their defaults.
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("default sample rate lost: %d", cfg.Audio.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty broker", func(c *Config) { c.MQTT.Broker = "" }},
		{"bad channels", func(c *Config) { c.Audio.Channels = 6 }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"volume ceiling range", func(c *Config) { c.Audio.MaxVolume = 120 }},
		{"tiny header window", func(c *Config) { c.Ingest.HeaderWindow = 1 }},
		{"zero queue capacity", func(c *Config) { c.Queue.Capacity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
