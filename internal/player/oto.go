// ABOUTME: Audio output sink using the oto library
// ABOUTME: Pulls queued PCM blocks through an io.Reader, padding gaps with silence
package player

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const drainPoll = 10 * time.Millisecond

// OtoSink plays blocks through the platform audio backend. oto pulls data
// from the sink via Read; while no block is queued the sink feeds silence
// so the output clock keeps running.
type OtoSink struct {
	mu      sync.Mutex
	otoCtx  *oto.Context
	player  *oto.Player
	queue   chan *Block
	current *Block
	offset  int
	running bool
}

// NewOtoSink creates a sink whose internal queue holds up to depth blocks.
func NewOtoSink(depth int) *OtoSink {
	return &OtoSink{queue: make(chan *Block, depth)}
}

// Start brings up the oto context and begins pulling. Safe to call again
// once running.
func (s *OtoSink) Start(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan
		s.otoCtx = ctx
		log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)
	}

	s.player = s.otoCtx.NewPlayer(s)
	s.player.Play()
	s.running = true
	return nil
}

// Write queues a block for output. Blocks while the queue is full, which
// is what bounds how far the renderer can run ahead of the device.
func (s *OtoSink) Write(b *Block) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		b.Release()
		return fmt.Errorf("sink not started")
	}
	s.queue <- b
	return nil
}

// Read feeds oto. Queued blocks are copied out and released once fully
// consumed; an empty queue yields silence.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filled := 0
	for filled < len(p) {
		if s.current == nil {
			select {
			case b := <-s.queue:
				s.current = b
				s.offset = 0
			default:
				// No data pending, pad the rest with silence.
				for i := filled; i < len(p); i++ {
					p[i] = 0
				}
				return len(p), nil
			}
		}
		n := copy(p[filled:], s.current.Bytes()[s.offset:])
		filled += n
		s.offset += n
		if s.offset >= len(s.current.Bytes()) {
			s.current.Release()
			s.current = nil
		}
	}
	return filled, nil
}

// Drain waits until every queued block has been handed to the device.
func (s *OtoSink) Drain() error {
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.mu.Lock()
		player := s.player
		empty := len(s.queue) == 0 && s.current == nil
		s.mu.Unlock()
		if player == nil {
			return nil
		}
		if empty && player.UnplayedBufferSize() == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("drain timed out")
		}
		time.Sleep(drainPoll)
	}
}

// Drop discards everything queued, releasing the blocks immediately.
func (s *OtoSink) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case b := <-s.queue:
			b.Release()
		default:
			if s.current != nil {
				s.current.Release()
				s.current = nil
			}
			return
		}
	}
}

// Pause suspends output, keeping queued audio in place.
func (s *OtoSink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Pause()
	}
	return nil
}

// Resume continues output after Pause.
func (s *OtoSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Play()
	}
	return nil
}

// Standby suspends or resumes the audio backend between sessions.
func (s *OtoSink) Standby(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.otoCtx == nil {
		return
	}
	if on {
		if err := s.otoCtx.Suspend(); err != nil {
			log.Printf("Audio standby failed: %v", err)
		}
	} else {
		if err := s.otoCtx.Resume(); err != nil {
			log.Printf("Audio wake failed: %v", err)
		}
	}
}

// Close tears down the player and suspends the backend.
func (s *OtoSink) Close() error {
	s.Drop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	if s.otoCtx != nil {
		s.otoCtx.Suspend()
	}
	s.running = false
	return nil
}
