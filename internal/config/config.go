// ABOUTME: Device configuration loaded from a YAML file
// ABOUTME: Covers broker endpoints, audio output format, storage paths and queue limits
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MQTT holds broker connection settings.
type MQTT struct {
	Broker          string        `yaml:"broker"`
	SecondaryBroker string        `yaml:"secondary_broker"`
	ClientID        string        `yaml:"client_id"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Keepalive       time.Duration `yaml:"keepalive"`
	CleanSession    bool          `yaml:"clean_session"`
	ReconnectMin    time.Duration `yaml:"reconnect_min"`
	ReconnectMax    time.Duration `yaml:"reconnect_max"`
	FailoverAfter   int           `yaml:"failover_after"`
	MaxSubs         int           `yaml:"max_subscriptions"`
	FrameBuffer     int           `yaml:"frame_buffer"`
}

// Audio holds the fixed output format and renderer limits.
type Audio struct {
	SampleRate    int           `yaml:"sample_rate"`
	Channels      int           `yaml:"channels"`
	FrameMs       int           `yaml:"frame_ms"`
	BlockCount    int           `yaml:"block_count"`
	SilenceBlocks int           `yaml:"silence_blocks"`
	BlockTimeout  time.Duration `yaml:"block_timeout"`
	InitialVolume int           `yaml:"initial_volume"`
	MaxVolume     int           `yaml:"max_volume"`
	StandbyIdle   bool          `yaml:"standby_when_idle"`
}

// Storage holds filesystem locations for audio files.
type Storage struct {
	ScratchDir string `yaml:"scratch_dir"`
	SavedDir   string `yaml:"saved_dir"`
}

// Ingest holds message demultiplexing thresholds.
type Ingest struct {
	HeaderWindow    int `yaml:"header_window"`
	InlineThreshold int `yaml:"inline_threshold"`
	ChunkSize       int `yaml:"chunk_size"`
	Workers         int `yaml:"workers"`
}

// Queue holds playback queue limits.
type Queue struct {
	Capacity    int           `yaml:"capacity"`
	FinishWait  time.Duration `yaml:"finish_wait"`
	PlayTimeout time.Duration `yaml:"play_timeout"`
}

// Status holds heartbeat publisher settings.
type Status struct {
	Interval time.Duration `yaml:"interval"`
}

// Config is the root device configuration.
type Config struct {
	DeviceID string  `yaml:"device_id"`
	MQTT     MQTT    `yaml:"mqtt"`
	Audio    Audio   `yaml:"audio"`
	Storage  Storage `yaml:"storage"`
	Ingest   Ingest  `yaml:"ingest"`
	Queue    Queue   `yaml:"queue"`
	Status   Status  `yaml:"status"`
}

// Default returns a configuration with all defaults applied.
func Default() Config {
	return Config{
		MQTT: MQTT{
			Broker:        "tcp://localhost:1883",
			Keepalive:     60 * time.Second,
			CleanSession:  true,
			ReconnectMin:  5 * time.Second,
			ReconnectMax:  2 * time.Minute,
			FailoverAfter: 5,
			MaxSubs:       16,
			FrameBuffer:   8,
		},
		Audio: Audio{
			SampleRate:    48000,
			Channels:      2,
			FrameMs:       20,
			BlockCount:    6,
			SilenceBlocks: 2,
			BlockTimeout:  2 * time.Second,
			InitialVolume: 40,
			MaxVolume:     75,
		},
		Storage: Storage{
			ScratchDir: "/var/lib/rapidreach/scratch",
			SavedDir:   "/var/lib/rapidreach/audio",
		},
		Ingest: Ingest{
			HeaderWindow:    512,
			InlineThreshold: 512,
			ChunkSize:       1024,
			Workers:         2,
		},
		Queue: Queue{
			Capacity:    10,
			FinishWait:  30 * time.Second,
			PlayTimeout: 60 * time.Second,
		},
		Status: Status{
			Interval: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file and merges it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks field ranges that would otherwise fail deep in the pipeline.
func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameMs <= 0 {
		return fmt.Errorf("audio.frame_ms must be positive, got %d", c.Audio.FrameMs)
	}
	if c.Audio.MaxVolume < 0 || c.Audio.MaxVolume > 100 {
		return fmt.Errorf("audio.max_volume must be 0-100, got %d", c.Audio.MaxVolume)
	}
	if c.Ingest.HeaderWindow <= 2 {
		return fmt.Errorf("ingest.header_window too small: %d", c.Ingest.HeaderWindow)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	return nil
}

// BlockSize returns the byte size of one fixed-duration output block.
func (a Audio) BlockSize() int {
	samplesPerBlock := (a.SampleRate / 1000) * a.FrameMs * a.Channels
	return samplesPerBlock * 2 // 16-bit samples
}
