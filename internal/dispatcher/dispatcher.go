// Package dispatcher fans an order batch out to every configured adapter
// with no fan-in: each adapter processes the batch on its own goroutine,
// and a slow or failing adapter never blocks its siblings. This mirrors
// agent.go's Run() loop, which launches one goroutine per subsystem into a
// shared error channel — except here a failing adapter never aborts the
// pipeline, it only fails its own batch.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

// Adapter is anything the dispatcher can hand a batch to.
type Adapter interface {
	Name() string
	Dispatch(ctx context.Context, batch model.OrderBatch)
}

// Dispatcher owns the set of configured adapters and tracks in-flight
// dispatch goroutines so shutdown can wait for them within a bound.
type Dispatcher struct {
	adapters     []Adapter
	shutdownWait time.Duration
	logger       *slog.Logger

	wg sync.WaitGroup
}

// Config configures a Dispatcher.
type Config struct {
	Adapters     []Adapter
	ShutdownWait time.Duration // defaults to 30s
	Logger       *slog.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.ShutdownWait <= 0 {
		cfg.ShutdownWait = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{adapters: cfg.Adapters, shutdownWait: cfg.ShutdownWait, logger: cfg.Logger}
}

// Dispatch launches one goroutine per adapter for this batch and returns
// immediately without waiting for any of them to finish. The same batch
// (same *model.Order pointers) is handed to every adapter, so adapters
// must not assume exclusive ownership of an order's mutable fields when
// more than one adapter is configured for a strategy.
func (d *Dispatcher) Dispatch(ctx context.Context, batch model.OrderBatch) {
	for _, a := range d.adapters {
		d.wg.Add(1)
		go func(adapter Adapter) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("adapter panicked", "adapter", adapter.Name(), "panic", r)
				}
			}()
			adapter.Dispatch(ctx, batch)
		}(a)
	}
}

// Shutdown waits for all in-flight adapter dispatches to finish, up to the
// configured bound. It returns false if the bound was exceeded.
func (d *Dispatcher) Shutdown() bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d.shutdownWait):
		d.logger.Warn("dispatcher shutdown timed out waiting for in-flight adapters")
		return false
	}
}
