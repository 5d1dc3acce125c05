// ABOUTME: Fixed-size PCM output blocks drawn from a bounded pool
// ABOUTME: Blocks cycle renderer -> sink -> pool, never per-block heap allocation
package player

import (
	"errors"
	"time"
)

// ErrPoolExhausted means no output block became free within the timeout.
var ErrPoolExhausted = errors.New("output block pool exhausted")

// Block is one fixed-duration chunk of PCM owned by whoever holds it.
type Block struct {
	buf  []byte
	pool *BlockPool
}

// Bytes returns the full block payload.
func (b *Block) Bytes() []byte { return b.buf }

// Zero clears the block to silence.
func (b *Block) Zero() {
	for i := range b.buf {
		b.buf[i] = 0
	}
}

// Release returns the block to its pool. The caller must not touch the
// block afterwards.
func (b *Block) Release() {
	b.pool.free <- b
}

// BlockPool is a fixed set of reusable output blocks.
type BlockPool struct {
	blockSize int
	free      chan *Block
}

// NewBlockPool allocates count blocks of blockSize bytes each.
func NewBlockPool(blockSize, count int) *BlockPool {
	p := &BlockPool{
		blockSize: blockSize,
		free:      make(chan *Block, count),
	}
	for i := 0; i < count; i++ {
		p.free <- &Block{buf: make([]byte, blockSize), pool: p}
	}
	return p
}

// Acquire takes a free block, waiting at most timeout for one.
func (p *BlockPool) Acquire(timeout time.Duration) (*Block, error) {
	select {
	case b := <-p.free:
		return b, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b := <-p.free:
		return b, nil
	case <-timer.C:
		return nil, ErrPoolExhausted
	}
}

// BlockSize returns the byte size of each block.
func (p *BlockPool) BlockSize() int { return p.blockSize }

// Free returns how many blocks are currently available.
func (p *BlockPool) Free() int { return len(p.free) }
