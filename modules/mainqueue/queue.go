// Package mainqueue implements the application's main serial queue.
//
// All UI work and frame presentation run as closures on a single goroutine
// draining the queue, so state owned by that goroutine needs no locks.
package mainqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO of closures drained by exactly one goroutine.
//
// Dispatch never blocks and never drops: a busy consumer defers work, it
// does not lose it. A closure already queued runs to completion even if
// the producer that queued it has since stopped.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	running bool

	executed uint64 // Atomic counter of closures run
}

// New returns an empty queue
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Dispatch appends fn to the queue.
// Returns false if the queue is closed and fn will not run.
func (q *Queue) Dispatch(fn func()) bool {
	if fn == nil {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
	q.mu.Unlock()

	return true
}

// Run drains the queue on the calling goroutine until ctx is done or
// Close is called. Closures queued before Close still run; closures
// pending when ctx is done are discarded.
//
// Only one Run may be active at a time; a second concurrent call returns
// immediately.
func (q *Queue) Run(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		slog.Warn("main-queue: Run already active")
		return
	}
	q.running = true
	q.mu.Unlock()

	// Wake the loop when ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed && ctx.Err() == nil {
			q.cond.Wait()
		}

		if ctx.Err() != nil {
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}

		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
			atomic.AddUint64(&q.executed, 1)
		}
	}
}

// Close stops accepting closures. Run returns after draining what was
// already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Len returns the number of closures waiting to run
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Executed returns the number of closures run so far
func (q *Queue) Executed() uint64 {
	return atomic.LoadUint64(&q.executed)
}
