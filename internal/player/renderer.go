// ABOUTME: Decode session turning an Ogg/Opus stream into output blocks
// ABOUTME: Handles header packets, mono upmix, gain and block packing
package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/ogg"
)

// renderSession decodes one alert stream packet by packet. Only one session
// may exist at a time.
type renderSession struct {
	ctrl       *Controller
	packets    *ogg.PacketReader
	dec        PacketDecoder
	head       ogg.OpusHead
	pcm        []int16
	headerDone bool
	pending    *Block
	pendingOff int
}

// newSession reads the stream header and sets up the decoder.
func (c *Controller) newSession(r io.Reader) (*renderSession, error) {
	if !c.sessionActive.CompareAndSwap(false, true) {
		return nil, ErrDecoderActive
	}

	packets := ogg.NewPacketReader(r)
	first, err := packets.Next()
	if err != nil {
		c.sessionActive.Store(false)
		return nil, fmt.Errorf("read stream header: %w", err)
	}
	head, err := ogg.ParseOpusHead(first)
	if err != nil {
		c.sessionActive.Store(false)
		return nil, fmt.Errorf("parse stream header: %w", err)
	}

	dec, err := c.newDecoder(c.cfg.SampleRate, head.Channels)
	if err != nil {
		c.sessionActive.Store(false)
		return nil, err
	}

	return &renderSession{
		ctrl:    c,
		packets: packets,
		dec:     dec,
		head:    head,
		pcm:     make([]int16, maxFrameSamples*c.cfg.Channels),
	}, nil
}

// renderNext decodes and emits one packet. It returns false at the end of
// the stream. Undecodable packets are skipped, not fatal.
func (s *renderSession) renderNext() (bool, error) {
	pkt, err := s.packets.Next()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read packet: %w", err)
	}

	if !s.headerDone {
		s.headerDone = true
		if ogg.IsOpusTags(pkt) {
			return true, nil
		}
	}

	n, err := s.dec.Decode(pkt, s.pcm)
	if err != nil {
		log.Printf("Skipping bad packet: %v", err)
		return true, nil
	}

	samples := n * s.head.Channels
	if s.head.Channels == 1 && s.ctrl.cfg.Channels == 2 {
		duplicateMono(s.pcm, n)
		samples = n * 2
	}
	applyGain(s.pcm[:samples], s.ctrl.gain())

	return true, s.emit(s.pcm[:samples])
}

// emit packs samples into fixed-size blocks, carrying a partial block over
// to the next packet.
func (s *renderSession) emit(samples []int16) error {
	i := 0
	for i < len(samples) {
		if s.pending == nil {
			b, err := s.ctrl.pool.Acquire(s.ctrl.cfg.BlockTimeout)
			if err != nil {
				return err
			}
			s.pending = b
			s.pendingOff = 0
		}
		buf := s.pending.Bytes()
		for i < len(samples) && s.pendingOff < len(buf) {
			binary.LittleEndian.PutUint16(buf[s.pendingOff:], uint16(samples[i]))
			s.pendingOff += 2
			i++
		}
		if s.pendingOff >= len(buf) {
			b := s.pending
			s.pending = nil
			if err := s.ctrl.sink.Write(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// flush zero-pads and emits the trailing partial block.
func (s *renderSession) flush() error {
	if s.pending == nil {
		return nil
	}
	buf := s.pending.Bytes()
	for j := s.pendingOff; j < len(buf); j++ {
		buf[j] = 0
	}
	b := s.pending
	s.pending = nil
	return s.ctrl.sink.Write(b)
}

// Close releases the decoder and any held block, ending the session.
func (s *renderSession) Close() {
	if s.pending != nil {
		s.pending.Release()
		s.pending = nil
	}
	if err := s.dec.Close(); err != nil {
		log.Printf("Decoder close failed: %v", err)
	}
	s.ctrl.sessionActive.Store(false)
}

// duplicateMono expands n mono samples at the front of pcm into n
// interleaved stereo pairs, in place.
func duplicateMono(pcm []int16, n int) {
	for i := n - 1; i >= 0; i-- {
		pcm[2*i] = pcm[i]
		pcm[2*i+1] = pcm[i]
	}
}

// applyGain scales samples in place.
func applyGain(samples []int16, gain float64) {
	if gain == 1.0 {
		return
	}
	for i, sample := range samples {
		samples[i] = int16(float64(sample) * gain)
	}
}
