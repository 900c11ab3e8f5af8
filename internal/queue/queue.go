// Package queue provides the bounded hand-off between the tailer and the
// dispatcher. It is modeled on the teacher's shipper buffer-and-flush
// design, reduced to its essential shape: a non-blocking producer that
// drops under backpressure rather than stalling the tailer, and a
// context-aware polling consumer.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

// BatchQueue is a bounded channel of order batches. The producer
// (the tailer) must never block on a full queue — in that case a batch is
// dropped and logged, never head-of-line blocked until the queue drains.
type BatchQueue struct {
	ch          chan model.OrderBatch
	pollPeriod  time.Duration
	logger      *slog.Logger
	dropped     int64
	enqueued    int64
}

// Config configures a BatchQueue.
type Config struct {
	Capacity   int
	PollPeriod time.Duration // defaults to 1s
	Logger     *slog.Logger
}

// New creates a BatchQueue with the given capacity.
func New(cfg Config) *BatchQueue {
	if cfg.PollPeriod <= 0 {
		cfg.PollPeriod = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BatchQueue{
		ch:         make(chan model.OrderBatch, cfg.Capacity),
		pollPeriod: cfg.PollPeriod,
		logger:     cfg.Logger,
	}
}

// TryEnqueue attempts a non-blocking send. It reports false if the queue is
// full, in which case the batch was dropped.
func (q *BatchQueue) TryEnqueue(batch model.OrderBatch) bool {
	select {
	case q.ch <- batch:
		q.enqueued++
		return true
	default:
		q.dropped++
		q.logger.Warn("queue full, dropping batch", "batch_size", len(batch), "total_dropped", q.dropped)
		return false
	}
}

// Dequeue blocks until a batch is available, the poll period elapses with
// nothing to return (nil, false), or ctx is canceled (nil, false). Callers
// loop on this, matching the tailer-independent polling cadence spec.md
// §4.3 requires.
func (q *BatchQueue) Dequeue(ctx context.Context) (model.OrderBatch, bool) {
	ticker := time.NewTicker(q.pollPeriod)
	defer ticker.Stop()

	select {
	case batch := <-q.ch:
		return batch, true
	case <-ticker.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Len returns the number of batches currently buffered.
func (q *BatchQueue) Len() int {
	return len(q.ch)
}

// Stats returns lifetime enqueue/drop counters.
func (q *BatchQueue) Stats() (enqueued, dropped int64) {
	return q.enqueued, q.dropped
}
