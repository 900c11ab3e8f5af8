package grouping

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

func TestQueue_FlushesAtGroupLimit(t *testing.T) {
	var mu sync.Mutex
	var batches []int

	q := New(2, func(ctx context.Context, batch model.OrderBatch) {
		mu.Lock()
		batches = append(batches, len(batch))
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(model.NewOrder(time.Now(), time.Now()))
	q.Enqueue(model.NewOrder(time.Now(), time.Now()))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(batches)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(batches) == 0 {
		t.Fatalf("expected at least one batch to be handled")
	}
	if batches[0] != 2 {
		t.Errorf("first batch size = %d, want 2", batches[0])
	}
}

func TestQueue_StopDrainsPartialBuffer(t *testing.T) {
	var mu sync.Mutex
	var total int

	q := New(10, func(ctx context.Context, batch model.OrderBatch) {
		mu.Lock()
		total += len(batch)
		mu.Unlock()
	}, nil)

	ctx := context.Background()
	q.Start(ctx)

	q.Enqueue(model.NewOrder(time.Now(), time.Now()))
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}
