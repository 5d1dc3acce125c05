// ABOUTME: Minimal Ogg container demuxer for Opus alert audio
// ABOUTME: Captures pages and reassembles lacing segments into codec packets
package ogg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var pageMagic = []byte("OggS")

// Page header flag bits.
const (
	flagContinuation = 0x01
	flagBOS          = 0x02
	flagEOS          = 0x04
)

// Demux errors.
var (
	ErrBadCapture = errors.New("ogg capture pattern not found")
	ErrBadVersion = errors.New("unsupported ogg stream structure version")
)

// Page is one decoded Ogg page. Segments preserve lacing boundaries: a
// segment of exactly 255 bytes continues into the next one.
type Page struct {
	HeaderType byte
	Granule    uint64
	Serial     uint32
	Sequence   uint32
	Segments   [][]byte
}

// Continued reports whether the first segment continues a packet from the
// previous page.
func (p *Page) Continued() bool { return p.HeaderType&flagContinuation != 0 }

// Last reports the end-of-stream flag.
func (p *Page) Last() bool { return p.HeaderType&flagEOS != 0 }

// PageReader scans an Ogg byte stream page by page.
type PageReader struct {
	r *bufio.Reader
}

// NewPageReader wraps r for page-at-a-time reading.
func NewPageReader(r io.Reader) *PageReader {
	return &PageReader{r: bufio.NewReader(r)}
}

// Next returns the next page, or io.EOF at a clean end of stream.
// It resynchronizes on the capture pattern, so mid-stream garbage costs a
// page rather than the whole stream.
func (pr *PageReader) Next() (*Page, error) {
	if err := pr.sync(); err != nil {
		return nil, err
	}

	header := make([]byte, 23) // remainder after the 4-byte capture pattern
	if _, err := io.ReadFull(pr.r, header); err != nil {
		return nil, fmt.Errorf("short ogg page header: %w", unexpectedEOF(err))
	}

	if header[0] != 0 {
		return nil, ErrBadVersion
	}

	page := &Page{
		HeaderType: header[1],
		Granule:    binary.LittleEndian.Uint64(header[2:10]),
		Serial:     binary.LittleEndian.Uint32(header[10:14]),
		Sequence:   binary.LittleEndian.Uint32(header[14:18]),
	}
	// header[18:22] is the page CRC; playback tolerates bit errors the same
	// way the rest of the pipeline tolerates a bad packet, so it is skipped.

	segCount := int(header[22])
	lacing := make([]byte, segCount)
	if _, err := io.ReadFull(pr.r, lacing); err != nil {
		return nil, fmt.Errorf("short ogg lacing table: %w", unexpectedEOF(err))
	}

	page.Segments = make([][]byte, segCount)
	for i, l := range lacing {
		seg := make([]byte, int(l))
		if _, err := io.ReadFull(pr.r, seg); err != nil {
			return nil, fmt.Errorf("short ogg segment: %w", unexpectedEOF(err))
		}
		page.Segments[i] = seg
	}

	return page, nil
}

// sync advances the stream to the next capture pattern.
func (pr *PageReader) sync() error {
	matched := 0
	skipped := 0

	for matched < len(pageMagic) {
		b, err := pr.r.ReadByte()
		if err != nil {
			if err == io.EOF && matched == 0 && skipped == 0 {
				return io.EOF
			}
			if err == io.EOF {
				return ErrBadCapture
			}
			return err
		}
		if b == pageMagic[matched] {
			matched++
			continue
		}
		skipped++
		if b == pageMagic[0] {
			matched = 1
		} else {
			matched = 0
		}
	}

	return nil
}

// PacketReader reassembles codec packets from a page stream. Packets may
// span pages; a segment shorter than 255 bytes terminates one.
type PacketReader struct {
	pages   *PageReader
	pending []byte
	queue   [][]byte
}

// NewPacketReader builds a PacketReader over r.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{pages: NewPageReader(r)}
}

// Next returns the next complete packet, or io.EOF at end of stream.
func (pk *PacketReader) Next() ([]byte, error) {
	for len(pk.queue) == 0 {
		page, err := pk.pages.Next()
		if err != nil {
			if err == io.EOF && len(pk.pending) > 0 {
				// Truncated final packet; deliver what arrived.
				last := pk.pending
				pk.pending = nil
				return last, nil
			}
			return nil, err
		}

		if !page.Continued() {
			pk.pending = nil
		}

		for _, seg := range page.Segments {
			pk.pending = append(pk.pending, seg...)
			if len(seg) < 255 {
				pk.queue = append(pk.queue, pk.pending)
				pk.pending = nil
			}
		}
	}

	packet := pk.queue[0]
	pk.queue = pk.queue[1:]
	return packet, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
