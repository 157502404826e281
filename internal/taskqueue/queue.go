// Package taskqueue provides a bounded admission controller for concurrent
// work: at most a fixed number of operations run at once, a bounded FIFO of
// callers waits for a free slot, and everything beyond that is rejected
// immediately.
package taskqueue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned when the waiting room is at capacity. The caller's
// operation never ran; retry policy belongs to the caller, not this layer.
var ErrQueueFull = errors.New("taskqueue: queue full")

const (
	DefaultMaxConcurrent = 5
	DefaultCapacity      = 100
)

// Queue runs submitted operations with at most MaxConcurrent running
// concurrently. All counters and the waiter list are guarded by a single
// mutex; a slot hand-off increments running before any other caller can
// observe the freed slot.
type Queue struct {
	mu            sync.Mutex
	maxConcurrent int
	capacity      int

	running int
	waiters []*waiter

	peak      int
	completed uint64
	waited    uint64
	totalWait time.Duration
}

type waiter struct {
	ready chan struct{}
}

// New creates a queue. Non-positive arguments fall back to the defaults.
func New(maxConcurrent, capacity int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{maxConcurrent: maxConcurrent, capacity: capacity}
}

// Do runs op within the concurrency bound. If a slot is free the operation
// runs immediately; otherwise the caller blocks FIFO until a running
// operation completes, or fails with ErrQueueFull when the waiting room is
// already at capacity. The operation's own error is returned unchanged.
//
// Cancelling ctx while waiting removes the caller from the wait list without
// leaking a slot; a slot granted concurrently with the cancellation is handed
// straight to the next waiter.
func (q *Queue) Do(ctx context.Context, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.running < q.maxConcurrent {
		q.admitLocked()
		q.mu.Unlock()
	} else {
		if len(q.waiters) >= q.capacity {
			q.mu.Unlock()
			return ErrQueueFull
		}
		w := &waiter{ready: make(chan struct{})}
		q.waiters = append(q.waiters, w)
		q.mu.Unlock()

		enqueued := time.Now()
		select {
		case <-w.ready:
			q.mu.Lock()
			q.waited++
			q.totalWait += time.Since(enqueued)
			q.mu.Unlock()
		case <-ctx.Done():
			q.mu.Lock()
			if q.removeLocked(w) {
				// Still waiting: no slot was ever held.
				q.mu.Unlock()
				return ctx.Err()
			}
			// The grant raced the cancellation; the slot is ours and
			// must be passed on.
			q.releaseSlotLocked()
			q.mu.Unlock()
			return ctx.Err()
		}
	}

	defer func() {
		q.mu.Lock()
		q.completed++
		q.releaseSlotLocked()
		q.mu.Unlock()
	}()
	return op(ctx)
}

// admitLocked takes a running slot for the calling goroutine.
func (q *Queue) admitLocked() {
	q.running++
	if q.running > q.peak {
		q.peak = q.running
	}
}

// releaseSlotLocked frees a running slot and, if anyone is waiting, hands it
// to the oldest waiter. The hand-off keeps running incremented so the bound
// is never transiently exceeded by a third caller.
func (q *Queue) releaseSlotLocked() {
	q.running--
	if len(q.waiters) == 0 {
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	q.admitLocked()
	close(next.ready)
}

func (q *Queue) removeLocked(target *waiter) bool {
	for i, w := range q.waiters {
		if w == target {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Stats is a snapshot of the queue's accounting counters.
type Stats struct {
	Running        int
	Waiting        int
	PeakConcurrent int
	Completed      uint64
	MeanWait       time.Duration
}

// Stats returns a consistent snapshot taken under the queue mutex.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{
		Running:        q.running,
		Waiting:        len(q.waiters),
		PeakConcurrent: q.peak,
		Completed:      q.completed,
	}
	if q.waited > 0 {
		s.MeanWait = q.totalWait / time.Duration(q.waited)
	}
	return s
}
