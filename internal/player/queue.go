// ABOUTME: Bounded playback queue with a single worker goroutine
// ABOUTME: Handles interrupt, repeat counts and scratch file cleanup
package player

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/anderswestberg/alnicko-rapidreach-fw-sub000/internal/storage"
)

const (
	queuePoll   = 100 * time.Millisecond
	repeatPause = 500 * time.Millisecond
)

// Request describes one queued alert playback.
type Request struct {
	Path      string
	Volume    int
	Priority  int
	PlayCount int // 0 means repeat until stopped
	Interrupt bool
	Scratch   bool // delete the file after playback
}

// Queue serializes alert playbacks through a Controller. Enqueue never
// blocks; the worker runs in Run.
type Queue struct {
	items    chan Request
	ctrl     *Controller
	store    *storage.Store
	finish   time.Duration
	playMax  time.Duration
	stopFlag atomic.Bool
}

// NewQueue creates a queue holding up to capacity pending requests.
// finishWait bounds how long a new request waits for the current playback;
// playTimeout bounds a single play pass.
func NewQueue(capacity int, ctrl *Controller, store *storage.Store, finishWait, playTimeout time.Duration) *Queue {
	return &Queue{
		items:   make(chan Request, capacity),
		ctrl:    ctrl,
		store:   store,
		finish:  finishWait,
		playMax: playTimeout,
	}
}

// Enqueue adds a request without blocking. It returns false when the queue
// is full; the caller keeps ownership of the file in that case. An
// interrupting request also stops whatever is playing right now so the
// worker gets to it without waiting out the current alert.
func (q *Queue) Enqueue(req Request) bool {
	select {
	case q.items <- req:
		if req.Interrupt {
			q.StopCurrent()
		}
		log.Printf("Queued alert %s (priority %d, depth %d)", req.Path, req.Priority, len(q.items))
		return true
	default:
		log.Printf("Queue full, dropping alert %s", req.Path)
		return false
	}
}

// StopCurrent aborts the in-progress playback, including remaining repeats.
func (q *Queue) StopCurrent() {
	q.stopFlag.Store(true)
	q.ctrl.Stop()
}

// Depth returns the number of pending requests.
func (q *Queue) Depth() int { return len(q.items) }

// Run processes requests until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drainPending()
			return
		case req := <-q.items:
			q.process(ctx, req)
		}
	}
}

func (q *Queue) process(ctx context.Context, req Request) {
	defer q.cleanup(req)

	if !q.store.Exists(req.Path) {
		log.Printf("Alert file missing, skipping: %s", req.Path)
		return
	}

	if q.ctrl.Playing() {
		if req.Interrupt {
			log.Printf("Interrupting current playback for %s", req.Path)
			q.ctrl.Stop()
		}
		if !q.waitIdle(ctx, q.finish) {
			log.Printf("Current playback did not finish in time, stopping it")
			q.ctrl.Stop()
			q.waitIdle(ctx, 2*time.Second)
		}
	}
	q.stopFlag.Store(false)

	q.ctrl.SetVolume(req.Volume)

	for pass := 0; req.PlayCount == 0 || pass < req.PlayCount; pass++ {
		if ctx.Err() != nil || q.stopFlag.Swap(false) {
			return
		}
		if pass > 0 {
			time.Sleep(repeatPause)
		}
		if err := q.ctrl.Start(req.Path); err != nil {
			log.Printf("Playback start failed: %v", err)
			return
		}
		if !q.waitPlaybackEnd(ctx) {
			return
		}
	}
}

// cleanup removes scratch files once the request is finished with.
func (q *Queue) cleanup(req Request) {
	if !req.Scratch {
		return
	}
	if err := q.store.Remove(req.Path); err != nil {
		log.Printf("Scratch cleanup failed for %s: %v", req.Path, err)
	}
}

// drainPending discards queued requests on shutdown, deleting their files.
func (q *Queue) drainPending() {
	for {
		select {
		case req := <-q.items:
			q.cleanup(req)
		default:
			return
		}
	}
}

// waitIdle polls until the controller is idle or the timeout passes.
func (q *Queue) waitIdle(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for q.ctrl.Playing() {
		if ctx.Err() != nil || time.Now().After(deadline) {
			return false
		}
		time.Sleep(queuePoll)
	}
	return true
}

// waitPlaybackEnd polls for the end of one play pass. It returns false when
// the pass was aborted or timed out, which also cancels remaining repeats.
func (q *Queue) waitPlaybackEnd(ctx context.Context) bool {
	deadline := time.Now().Add(q.playMax)
	started := false
	for {
		if ctx.Err() != nil {
			q.ctrl.Stop()
			return false
		}
		if q.stopFlag.Swap(false) {
			q.ctrl.Stop()
			q.waitIdle(ctx, 2*time.Second)
			return false
		}
		playing := q.ctrl.Playing()
		if started && !playing {
			return true
		}
		if playing {
			started = true
		}
		if time.Now().After(deadline) {
			log.Printf("Playback watchdog fired, stopping")
			q.ctrl.Stop()
			q.waitIdle(ctx, 2*time.Second)
			return false
		}
		time.Sleep(queuePoll)
	}
}
