// ABOUTME: MQTT session with owned reconnect supervision over paho
// ABOUTME: Inbound frames are queued for ingest workers, never parsed here
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 15 * time.Second
	publishTimeout = 10 * time.Second
	actionTimeout  = 5 * time.Second
)

// ErrNotConnected means the session currently has no broker connection.
var ErrNotConnected = errors.New("not connected to broker")

// Frame is one inbound MQTT publish, handed over unparsed.
type Frame struct {
	Topic string
	Size  int
	Body  io.Reader
}

// Config holds broker endpoints and session tuning.
type Config struct {
	Broker          string
	SecondaryBroker string
	ClientID        string
	Username        string
	Password        string
	Keepalive       time.Duration
	CleanSession    bool
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
	FailoverAfter   int
	MaxSubs         int
	FrameBuffer     int
}

// Session maintains one broker connection at a time. Reconnect policy is
// owned here; paho's auto-reconnect stays disabled so backoff and failover
// follow the configured schedule.
type Session struct {
	cfg    Config
	frames chan Frame
	subs   *subTable
	lost   chan struct{}

	mu        sync.Mutex
	client    mqtt.Client
	connected bool
	onState   []func(connected bool)
}

// NewSession creates a session. Run must be called to bring it online.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:    cfg,
		frames: make(chan Frame, cfg.FrameBuffer),
		subs:   newSubTable(cfg.MaxSubs),
		lost:   make(chan struct{}, 1),
	}
}

// Frames returns the inbound frame queue.
func (s *Session) Frames() <-chan Frame { return s.frames }

// OnState registers a callback invoked from the session goroutine whenever
// the connection state changes. Register before calling Run.
func (s *Session) OnState(fn func(connected bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = append(s.onState, fn)
}

// Connected reports whether a broker connection is up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Subscribe registers a topic for this and every future session. When a
// connection is up the subscription is also made immediately.
func (s *Session) Subscribe(topic string) error {
	if err := s.subs.add(topic); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	s.mu.Lock()
	client, connected := s.client, s.connected
	s.mu.Unlock()
	if !connected {
		return nil
	}
	token := client.Subscribe(topic, 1, s.handleMessage)
	if !token.WaitTimeout(actionTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends payload at QoS 1. It fails fast when disconnected.
func (s *Session) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	client, connected := s.client, s.connected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	token := client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run connects and supervises the session until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	backoff := NewBackoff(s.cfg.ReconnectMin, s.cfg.ReconnectMax)
	endpoints := []string{s.cfg.Broker}
	if s.cfg.SecondaryBroker != "" {
		endpoints = append(endpoints, s.cfg.SecondaryBroker)
	}
	picker := newEndpointPicker(endpoints, s.cfg.FailoverAfter)

	for ctx.Err() == nil {
		endpoint := picker.Current()
		client, err := s.connect(endpoint)
		if err != nil {
			log.Printf("MQTT connect to %s failed: %v", endpoint, err)
			if picker.Failure() {
				log.Printf("Failing over to broker %s", picker.Current())
			}
			if !sleepCtx(ctx, backoff.Next()) {
				return
			}
			continue
		}

		s.setClient(client, true)
		s.notify(true)
		log.Printf("Connected to MQTT broker: %s", endpoint)
		backoff.Reset()
		picker.Success()
		s.replaySubscriptions(client)

		select {
		case <-ctx.Done():
			client.Disconnect(250)
			s.setClient(nil, false)
			s.notify(false)
			return
		case <-s.lost:
			s.setClient(nil, false)
			s.notify(false)
			log.Printf("MQTT connection lost, reconnecting")
		}
	}
}

func (s *Session) connect(endpoint string) (mqtt.Client, error) {
	// Clear any stale loss signal from the previous session.
	select {
	case <-s.lost:
	default:
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(endpoint)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetKeepAlive(s.cfg.Keepalive)
	opts.SetCleanSession(s.cfg.CleanSession)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
		select {
		case s.lost <- struct{}{}:
		default:
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

// replaySubscriptions re-establishes every registered topic on a fresh
// connection.
func (s *Session) replaySubscriptions(client mqtt.Client) {
	for _, topic := range s.subs.list() {
		token := client.Subscribe(topic, 1, s.handleMessage)
		if !token.WaitTimeout(actionTimeout) {
			log.Printf("Resubscribe to %s timed out", topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("Resubscribe to %s failed: %v", topic, err)
			continue
		}
		log.Printf("Subscribed to topic: %s", topic)
	}
}

// handleMessage runs on paho's router goroutine. It must not block, so a
// full frame queue drops the message; QoS 1 delivery is acked either way.
func (s *Session) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	frame := Frame{
		Topic: msg.Topic(),
		Size:  len(payload),
		Body:  bytes.NewReader(payload),
	}
	select {
	case s.frames <- frame:
	default:
		log.Printf("Frame queue full, dropping %d bytes from %s", len(payload), msg.Topic())
	}
}

func (s *Session) setClient(client mqtt.Client, connected bool) {
	s.mu.Lock()
	s.client = client
	s.connected = connected
	s.mu.Unlock()
}

func (s *Session) notify(connected bool) {
	s.mu.Lock()
	callbacks := make([]func(bool), len(s.onState))
	copy(callbacks, s.onState)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn(connected)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
