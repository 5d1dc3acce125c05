// ABOUTME: Tests for the Ogg demuxer
// ABOUTME: Builds synthetic pages and checks packet reassembly
package ogg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// buildPage assembles one Ogg page from packet fragments. Each fragment
// becomes lacing segments; fragments of length n produce n/255 full segments
// plus a terminator, matching a real muxer.
func buildPage(t *testing.T, headerType byte, seq uint32, fragments ...[]byte) []byte {
	t.Helper()

	var lacing []byte
	var body []byte
	for _, frag := range fragments {
		remaining := len(frag)
		for remaining >= 255 {
			lacing = append(lacing, 255)
			remaining -= 255
		}
		lacing = append(lacing, byte(remaining))
		body = append(body, frag...)
	}
	if len(lacing) > 255 {
		t.Fatalf("test page too large: %d segments", len(lacing))
	}

	var buf bytes.Buffer
	buf.WriteString("OggS")
	buf.WriteByte(0) // version
	buf.WriteByte(headerType)
	binary.Write(&buf, binary.LittleEndian, uint64(0)) // granule
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // serial
	binary.Write(&buf, binary.LittleEndian, seq)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // crc, unchecked
	buf.WriteByte(byte(len(lacing)))
	buf.Write(lacing)
	buf.Write(body)
	return buf.Bytes()
}

func TestPageReaderSinglePage(t *testing.T) {
	data := buildPage(t, 0x02, 0, []byte("hello"), []byte("world!"))
	pr := NewPageReader(bytes.NewReader(data))

	page, err := pr.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(page.Segments))
	}
	if string(page.Segments[0]) != "hello" || string(page.Segments[1]) != "world!" {
		t.Errorf("segment contents wrong: %q %q", page.Segments[0], page.Segments[1])
	}

	if _, err := pr.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestPageReaderResync(t *testing.T) {
	page := buildPage(t, 0, 1, []byte("audio"))
	data := append([]byte("garbage before"), page...)

	pr := NewPageReader(bytes.NewReader(data))
	got, err := pr.Next()
	if err != nil {
		t.Fatalf("expected resync to find the page: %v", err)
	}
	if string(got.Segments[0]) != "audio" {
		t.Errorf("wrong segment after resync: %q", got.Segments[0])
	}
}

func TestPageReaderBadVersion(t *testing.T) {
	data := buildPage(t, 0, 0, []byte("x"))
	data[4] = 9 // corrupt the version byte

	pr := NewPageReader(bytes.NewReader(data))
	if _, err := pr.Next(); !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion, got %v", err)
	}
}

func TestPacketReaderReassembly(t *testing.T) {
	// A 600-byte packet spans three lacing segments (255+255+90) but is one
	// codec packet.
	big := bytes.Repeat([]byte{0x5A}, 600)
	small := []byte("end")
	data := buildPage(t, 0, 0, big, small)

	pk := NewPacketReader(bytes.NewReader(data))

	first, err := pk.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first, big) {
		t.Errorf("expected 600-byte packet, got %d bytes", len(first))
	}

	second, err := pk.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second) != "end" {
		t.Errorf("expected trailing packet, got %q", second)
	}

	if _, err := pk.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestPacketReaderSpanningPages(t *testing.T) {
	// A packet whose length is a multiple of 255 continues onto the next
	// page, which carries the continuation flag and a zero-length terminator.
	part := bytes.Repeat([]byte{0x11}, 255)
	page1 := buildPageRaw(t, 0x00, 0, [][]byte{part}, []byte{255})
	page2 := buildPageRaw(t, flagContinuation, 1, [][]byte{nil}, []byte{0})

	pk := NewPacketReader(bytes.NewReader(append(page1, page2...)))
	packet, err := pk.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(packet, part) {
		t.Errorf("expected 255-byte packet, got %d bytes", len(packet))
	}
}

// buildPageRaw gives a test full control over the lacing table.
func buildPageRaw(t *testing.T, headerType byte, seq uint32, bodies [][]byte, lacing []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("OggS")
	buf.WriteByte(0)
	buf.WriteByte(headerType)
	binary.Write(&buf, binary.LittleEndian, uint64(0))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, seq)
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteByte(byte(len(lacing)))
	buf.Write(lacing)
	for _, b := range bodies {
		buf.Write(b)
	}
	return buf.Bytes()
}

func TestPacketReaderTruncatedFinalPacket(t *testing.T) {
	// Stream ends while a packet is still open (all-255 lacing, no
	// terminator page). The partial packet is still delivered.
	part := bytes.Repeat([]byte{0x22}, 255)
	page := buildPageRaw(t, 0, 0, [][]byte{part}, []byte{255})

	pk := NewPacketReader(bytes.NewReader(page))
	packet, err := pk.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(packet) != 255 {
		t.Errorf("expected truncated 255-byte packet, got %d", len(packet))
	}
	if _, err := pk.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}
