// ABOUTME: Sink abstracts the PCM output device behind a block-oriented API
// ABOUTME: Real playback goes through the oto sink; tests use an in-memory one
package player

// Sink consumes fixed-size PCM blocks. Write hands block ownership to the
// sink, which releases each block back to its pool once the device has
// consumed it.
type Sink interface {
	// Start prepares the device for the given format. Calling Start on a
	// sink that is already running is a no-op.
	Start(sampleRate, channels int) error

	// Write queues a block for output. It may block while the sink's
	// internal queue is full.
	Write(b *Block) error

	// Drain blocks until all queued audio has been consumed.
	Drain() error

	// Drop discards all queued audio immediately, releasing the blocks.
	Drop()

	// Pause suspends output without discarding queued audio.
	Pause() error

	// Resume continues output after Pause.
	Resume() error

	// Standby toggles the device's low-power state between sessions.
	Standby(on bool)

	// Close releases the device.
	Close() error
}
