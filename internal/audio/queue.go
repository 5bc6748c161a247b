package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

// FrameQueue is a bounded single-producer/single-consumer queue of frames.
// Push never blocks: when the consumer falls behind, frames are dropped and
// counted.
type FrameQueue struct {
	ch        chan AudioBuffer
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewFrameQueue returns a queue holding up to capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	return &FrameQueue{ch: make(chan AudioBuffer, max(capacity, 1))}
}

// Push enqueues b and reports whether it was accepted.
func (q *FrameQueue) Push(b AudioBuffer) bool {
	select {
	case q.ch <- b:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop waits for the next frame. It returns ErrQueueClosed once the queue is
// closed and drained, or the context error when ctx is done first.
func (q *FrameQueue) Pop(ctx context.Context) (AudioBuffer, error) {
	select {
	case b, ok := <-q.ch:
		if !ok {
			return AudioBuffer{}, ErrQueueClosed
		}
		return b, nil
	case <-ctx.Done():
		return AudioBuffer{}, ctx.Err()
	}
}

// C returns the receive side of the queue for use in select statements.
func (q *FrameQueue) C() <-chan AudioBuffer { return q.ch }

// Close marks the end of the stream. Only the producer may call it, and it
// must not Push afterwards.
func (q *FrameQueue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Dropped returns the number of frames rejected by Push.
func (q *FrameQueue) Dropped() uint64 { return q.dropped.Load() }

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int { return cap(q.ch) }
