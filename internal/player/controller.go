// ABOUTME: Playback controller owning the decode/render state machine
// ABOUTME: One session at a time; stop and pause take effect between packets
package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// State is the controller's playback state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// ErrBusy is returned by Start while another playback is active.
var ErrBusy = errors.New("playback already active")

// ErrDecoderActive means a decode session is still open.
var ErrDecoderActive = errors.New("decoder session already active")

// Config holds the output format and render limits.
type Config struct {
	SampleRate    int
	Channels      int
	FrameMs       int
	BlockCount    int
	SilenceBlocks int
	BlockTimeout  time.Duration
	InitialVolume int
	MaxVolume     int
	StandbyIdle   bool
}

// BlockSize returns the byte size of one output block: FrameMs of
// interleaved s16le PCM.
func (c Config) BlockSize() int {
	return c.SampleRate / 1000 * c.FrameMs * c.Channels * 2
}

type command int

const (
	cmdPause command = iota
	cmdResume
)

// Controller renders alert files through a Sink. All decoding happens on a
// single worker goroutine; Start, Stop, Pause and Resume are safe from any
// goroutine.
type Controller struct {
	cfg        Config
	sink       Sink
	pool       *BlockPool
	newDecoder func(sampleRate, channels int) (PacketDecoder, error)

	mu     sync.Mutex
	state  State
	volume int
	muted  bool

	sessionActive atomic.Bool
	startCh       chan string
	commands      chan command
	stopCh        chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
}

// New creates a controller and starts its worker goroutine.
func New(cfg Config, sink Sink) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		sink:       sink,
		pool:       NewBlockPool(cfg.BlockSize(), cfg.BlockCount),
		newDecoder: newOpusDecoder,
		volume:     cfg.InitialVolume,
		startCh:    make(chan string, 1),
		commands:   make(chan command, 4),
		stopCh:     make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

// Start begins playing the Ogg/Opus file at path. It returns ErrBusy if a
// playback is already in progress and does not wait for completion.
func (c *Controller) Start(path string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateStarting
	c.mu.Unlock()

	c.startCh <- path
	return nil
}

// Stop requests the current playback end. No-op when idle.
func (c *Controller) Stop() {
	select {
	case c.stopCh <- struct{}{}:
	default:
	}
}

// Pause suspends the current playback between packets.
func (c *Controller) Pause() { c.sendCommand(cmdPause) }

// Resume continues a paused playback.
func (c *Controller) Resume() { c.sendCommand(cmdResume) }

func (c *Controller) sendCommand(cmd command) {
	select {
	case c.commands <- cmd:
	default:
	}
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Playing reports whether a playback is active, including paused.
func (c *Controller) Playing() bool {
	return c.State() != StateIdle
}

// SetVolume sets the playback volume (0-100).
func (c *Controller) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

// Volume returns the requested volume.
func (c *Controller) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetMuted sets mute state.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// Muted returns mute state.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// gain returns the render multiplier, capping the requested volume at the
// configured output ceiling.
func (c *Controller) gain() float64 {
	c.mu.Lock()
	volume, muted := c.volume, c.muted
	c.mu.Unlock()
	if muted {
		return 0.0
	}
	if volume > c.cfg.MaxVolume {
		volume = c.cfg.MaxVolume
	}
	return float64(volume) / 100.0
}

// Close stops the worker and releases the sink.
func (c *Controller) Close() {
	c.Stop()
	c.cancel()
	<-c.done
	if err := c.sink.Close(); err != nil {
		log.Printf("Sink close failed: %v", err)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case path := <-c.startCh:
			if err := c.playFile(path); err != nil {
				log.Printf("Playback error: %v", err)
			}
			c.setState(StateIdle)
			if c.cfg.StandbyIdle {
				c.sink.Standby(true)
			}
		}
	}
}

// drainControls discards commands left over from a previous session.
func (c *Controller) drainControls() {
	for {
		select {
		case <-c.commands:
		case <-c.stopCh:
		default:
			return
		}
	}
}

func (c *Controller) playFile(path string) error {
	c.drainControls()
	c.sink.Standby(false)
	if err := c.sink.Start(c.cfg.SampleRate, c.cfg.Channels); err != nil {
		return fmt.Errorf("start audio output: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open alert file: %w", err)
	}
	defer f.Close()

	session, err := c.newSession(bufio.NewReader(f))
	if err != nil {
		return err
	}
	defer session.Close()

	if err := c.primeSilence(); err != nil {
		return err
	}
	c.setState(StatePlaying)
	log.Printf("Playback started: %s", filepath.Base(path))

	stopped := false
	for {
		if c.pollControls() {
			stopped = true
			break
		}
		more, err := session.renderNext()
		if err != nil {
			log.Printf("Playback aborted: %v", err)
			stopped = true
			break
		}
		if !more {
			break
		}
	}

	if stopped {
		c.sink.Drop()
		log.Printf("Playback stopped")
		return nil
	}

	if err := session.flush(); err != nil {
		c.sink.Drop()
		return err
	}
	if err := c.sink.Drain(); err != nil {
		log.Printf("Drain failed: %v", err)
	}
	log.Printf("Playback finished")
	return nil
}

// primeSilence queues a few silent blocks before the first decoded audio so
// the output device is already streaming when real samples arrive.
func (c *Controller) primeSilence() error {
	for i := 0; i < c.cfg.SilenceBlocks; i++ {
		b, err := c.pool.Acquire(c.cfg.BlockTimeout)
		if err != nil {
			return err
		}
		b.Zero()
		if err := c.sink.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// pollControls handles pending stop/pause/resume requests. It returns true
// when the session should end. A pause blocks here until resumed or stopped.
func (c *Controller) pollControls() bool {
	for {
		select {
		case <-c.stopCh:
			return true
		case cmd := <-c.commands:
			if cmd == cmdPause && c.waitResume() {
				return true
			}
		case <-c.ctx.Done():
			return true
		default:
			return false
		}
	}
}

// waitResume holds the session in the paused state. It returns true if the
// pause ended with a stop.
func (c *Controller) waitResume() bool {
	c.setState(StatePaused)
	if err := c.sink.Pause(); err != nil {
		log.Printf("Pause failed: %v", err)
	}
	log.Printf("Playback paused")
	for {
		select {
		case <-c.stopCh:
			return true
		case cmd := <-c.commands:
			if cmd == cmdResume {
				if err := c.sink.Resume(); err != nil {
					log.Printf("Resume failed: %v", err)
				}
				c.setState(StatePlaying)
				log.Printf("Playback resumed")
				return false
			}
		case <-c.ctx.Done():
			return true
		}
	}
}
