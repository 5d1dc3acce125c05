// ABOUTME: Alert frame demultiplexer: JSON metadata header plus binary Opus payload
// ABOUTME: Small payloads stay in memory, large ones stream to a scratch file in chunks
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/alert"
	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/storage"
)

// Ingest errors.
var (
	// ErrSizeMismatch means the frame carries fewer payload bytes than the
	// header declared.
	ErrSizeMismatch = errors.New("payload shorter than declared opus_data_size")

	// ErrTestPing marks a short frame with no parseable header; the backend
	// sends these to probe connectivity and they carry no audio.
	ErrTestPing = errors.New("connectivity test ping")
)

// Frames shorter than this with no balanced header are treated as pings
// rather than framing errors.
const pingMaxSize = 100

// Blob is the audio payload of one alert. Exactly one of Data and Path is
// set; whoever holds the Blob owns the bytes or the file.
type Blob struct {
	Data []byte
	Path string
}

// InFile reports whether the payload was streamed to storage.
func (b Blob) InFile() bool { return b.Path != "" }

// Config tunes the demultiplexer.
type Config struct {
	// HeaderWindow is the maximum JSON header size in bytes.
	HeaderWindow int
	// InlineThreshold is the payload size at or above which the audio is
	// streamed to a file instead of held in memory.
	InlineThreshold int
	// ChunkSize is the unit of streaming file writes.
	ChunkSize int
}

// Ingester extracts (metadata, audio) pairs from alert frames.
type Ingester struct {
	cfg   Config
	store *storage.Store
}

// New creates an Ingester writing large payloads through store.
func New(cfg Config, store *storage.Store) *Ingester {
	return &Ingester{cfg: cfg, store: store}
}

// Ingest consumes one frame of total bytes from r and returns its parsed
// metadata and audio payload. On any error the remaining declared bytes are
// drained from r so the caller's stream stays framed. ctx is checked between
// streaming chunks so a shutdown never waits for a full transfer.
func (ing *Ingester) Ingest(ctx context.Context, r io.Reader, total int) (alert.Metadata, Blob, error) {
	header, err := ExtractHeader(r, ing.cfg.HeaderWindow)
	if err != nil {
		if total < pingMaxSize {
			drain(r, total)
			return alert.Metadata{}, Blob{}, ErrTestPing
		}
		drain(r, total)
		return alert.Metadata{}, Blob{}, err
	}

	meta, err := alert.ParseMetadata(header)
	if err != nil {
		drain(r, total-len(header))
		return alert.Metadata{}, Blob{}, err
	}

	available := total - len(header)
	if available < meta.OpusDataSize {
		drain(r, available)
		return alert.Metadata{}, Blob{}, fmt.Errorf("%w: declared %d, available %d",
			ErrSizeMismatch, meta.OpusDataSize, available)
	}

	var blob Blob
	if meta.OpusDataSize < ing.cfg.InlineThreshold {
		blob, err = ing.readInline(r, meta.OpusDataSize)
	} else {
		blob, err = ing.streamToFile(ctx, r, meta.OpusDataSize)
	}
	if err != nil {
		return alert.Metadata{}, Blob{}, err
	}

	// Trailing bytes beyond the declared size are not part of this alert.
	if extra := available - meta.OpusDataSize; extra > 0 {
		drain(r, extra)
	}

	log.Printf("Ingested alert: header=%dB audio=%dB priority=%d volume=%d file=%v",
		len(header), meta.OpusDataSize, meta.Priority, meta.Volume, blob.InFile())

	return meta, blob, nil
}

// readInline copies a small payload into memory.
func (ing *Ingester) readInline(r io.Reader, size int) (Blob, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return Blob{}, fmt.Errorf("failed to read inline payload: %w", err)
	}
	return Blob{Data: data}, nil
}

// streamToFile copies the payload into a uniquely named scratch file, one
// chunk at a time. Any failure removes the partial file and drains what the
// sender still owes so the next frame starts cleanly.
func (ing *Ingester) streamToFile(ctx context.Context, r io.Reader, size int) (Blob, error) {
	path := ing.store.ScratchPath()

	f, err := os.Create(path)
	if err != nil {
		drain(r, size)
		return Blob{}, fmt.Errorf("failed to create scratch file: %w", err)
	}

	chunk := make([]byte, ing.cfg.ChunkSize)
	remaining := size

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			ing.abortStream(f, path, r, remaining)
			return Blob{}, err
		}

		n := len(chunk)
		if remaining < n {
			n = remaining
		}

		read, err := io.ReadFull(r, chunk[:n])
		if err != nil {
			ing.abortStream(f, path, r, remaining-read)
			return Blob{}, fmt.Errorf("payload read failed with %d bytes left: %w", remaining, err)
		}

		if _, err := f.Write(chunk[:n]); err != nil {
			ing.abortStream(f, path, r, remaining-n)
			return Blob{}, fmt.Errorf("scratch write failed: %w", err)
		}

		remaining -= n
	}

	if err := f.Close(); err != nil {
		ing.store.Remove(path)
		return Blob{}, fmt.Errorf("scratch close failed: %w", err)
	}

	return Blob{Path: path}, nil
}

// abortStream cleans up a half-written scratch file and keeps the reader
// framed for the next message.
func (ing *Ingester) abortStream(f *os.File, path string, r io.Reader, owed int) {
	f.Close()
	if err := ing.store.Remove(path); err != nil {
		log.Printf("Failed to remove partial scratch file: %v", err)
	}
	drain(r, owed)
}

// drain discards up to n bytes, stopping quietly at EOF.
func drain(r io.Reader, n int) {
	if n <= 0 {
		return
	}
	io.CopyN(io.Discard, r, int64(n))
}
