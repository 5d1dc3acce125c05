// ABOUTME: Opus packet decoder backed by libopus
// ABOUTME: Decodes one Ogg packet at a time into int16 PCM
package player

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxFrameSamples is the largest Opus frame: 120ms at 48kHz, per channel.
const maxFrameSamples = 5760

// PacketDecoder decodes Opus packets to interleaved int16 PCM. Decode
// returns the number of samples produced per channel.
type PacketDecoder interface {
	Decode(packet []byte, pcm []int16) (int, error)
	Channels() int
	Close() error
}

type opusPacketDecoder struct {
	decoder  *opus.Decoder
	channels int
}

// newOpusDecoder creates a libopus decoder for the given stream layout.
func newOpusDecoder(sampleRate, channels int) (PacketDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &opusPacketDecoder{decoder: dec, channels: channels}, nil
}

func (d *opusPacketDecoder) Decode(packet []byte, pcm []int16) (int, error) {
	n, err := d.decoder.Decode(packet, pcm)
	if err != nil {
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}
	return n, nil
}

func (d *opusPacketDecoder) Channels() int { return d.channels }

func (d *opusPacketDecoder) Close() error { return nil }
