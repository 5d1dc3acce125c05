// ABOUTME: OpusHead stream-configuration packet parsing
// ABOUTME: Validates the leading packet of an Ogg Opus stream
package ogg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var opusHeadMagic = []byte("OpusHead")
var opusTagsMagic = []byte("OpusTags")

// ErrNotOpus means the first packet is not an OpusHead.
var ErrNotOpus = errors.New("stream does not begin with an OpusHead packet")

// OpusHead is the decoded stream-configuration packet.
type OpusHead struct {
	Version         int
	Channels        int
	PreSkip         int
	InputSampleRate int
	OutputGain      int
}

// ParseOpusHead validates and decodes an OpusHead packet.
func ParseOpusHead(packet []byte) (OpusHead, error) {
	if len(packet) < 19 || string(packet[:8]) != string(opusHeadMagic) {
		return OpusHead{}, ErrNotOpus
	}

	head := OpusHead{
		Version:         int(packet[8]),
		Channels:        int(packet[9]),
		PreSkip:         int(binary.LittleEndian.Uint16(packet[10:12])),
		InputSampleRate: int(binary.LittleEndian.Uint32(packet[12:16])),
		OutputGain:      int(int16(binary.LittleEndian.Uint16(packet[16:18]))),
	}

	// Only the major version nibble is significant per the Opus spec.
	if head.Version>>4 != 0 {
		return OpusHead{}, fmt.Errorf("unsupported OpusHead version %d", head.Version)
	}
	if head.Channels < 1 || head.Channels > 2 {
		return OpusHead{}, fmt.Errorf("unsupported channel count %d", head.Channels)
	}

	return head, nil
}

// IsOpusTags reports whether packet is the comment packet that follows the
// OpusHead. It carries no audio and is skipped during playback.
func IsOpusTags(packet []byte) bool {
	return len(packet) >= 8 && string(packet[:8]) == string(opusTagsMagic)
}
