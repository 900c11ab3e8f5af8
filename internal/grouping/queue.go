// Package grouping provides a per-adapter deque that accumulates orders
// until either a size threshold or an explicit flush drains them in batches
// of at most the group limit, feeding a single background worker. The worker lifecycle
// (Start/Stop/run) follows the teacher's alert worker shape; the deque
// itself uses a mutex and condition variable rather than a channel so a
// flush can wake the worker without requiring every producer to know the
// worker is idle.
package grouping

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stoxxo/signalpipe/internal/model"
)

// Handler processes one accumulated batch. It is invoked on the worker
// goroutine, never concurrently with itself.
type Handler func(ctx context.Context, batch model.OrderBatch)

// Queue accumulates orders for a single adapter and hands them to a
// background worker once GroupLimit is reached or Flush is called.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer model.OrderBatch

	groupLimit int
	closed     bool

	handler Handler
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New creates a grouping Queue that calls handler with batches of up to
// groupLimit orders.
func New(groupLimit int, handler Handler, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		groupLimit: groupLimit,
		handler:    handler,
		logger:     logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the background worker. It returns immediately; call Stop
// to drain and shut it down.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.run(ctx)
}

// Enqueue appends an order to the deque, waking the worker if the group
// limit has been reached.
func (q *Queue) Enqueue(o *model.Order) {
	q.mu.Lock()
	q.buffer = append(q.buffer, o)
	full := len(q.buffer) >= q.groupLimit
	q.mu.Unlock()

	if full {
		q.cond.Signal()
	}
}

// Flush wakes the worker to drain whatever is currently buffered, even if
// below the group limit. Nothing in this module calls it on a timer: a
// partial group stays buffered until the limit is reached, Flush is
// called, or Stop drains it on shutdown.
func (q *Queue) Flush() {
	q.cond.Signal()
}

// Stop signals the worker to exit after draining any remaining buffer, and
// waits for it to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		batch, closed := q.waitForWork(ctx)
		if len(batch) > 0 {
			q.handler(ctx, batch)
		}
		if closed {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// waitForWork blocks until there is something to drain, the queue is
// closed, or the context is canceled, then atomically takes up to
// groupLimit orders from the front of the buffer.
func (q *Queue) waitForWork(ctx context.Context) (model.OrderBatch, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Signal()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.buffer) == 0 && !q.closed {
		select {
		case <-ctx.Done():
			return nil, true
		default:
		}
		q.cond.Wait()
	}

	n := len(q.buffer)
	if q.groupLimit > 0 && n > q.groupLimit {
		n = q.groupLimit
	}
	batch := q.buffer[:n:n]
	q.buffer = q.buffer[n:]
	return batch, q.closed && len(batch) == 0
}
