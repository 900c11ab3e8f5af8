// Package health periodically logs pipeline resource and backlog metrics.
// This is the ambient operability surface a service of this shape always
// carries; it has no analog in spec.md's distilled scope but mirrors the
// teacher's infrastructure health collector (control-plane/internal/metrics),
// trading a Postgres/TCP health check for a pure-process CPU/RSS snapshot
// via gopsutil/v3/process plus the pipeline's own queue depth. The
// Snapshot's InFlight field is not populated or logged by the collector.
package health

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is one point-in-time resource reading.
type Snapshot struct {
	CPUPercent float64
	RSSBytes   uint64
	QueueDepth int
	InFlight   int64
}

// QueueDepther reports how many batches are currently buffered.
type QueueDepther interface {
	Len() int
}

// Collector periodically samples process resource usage alongside
// pipeline-supplied backlog counters and logs the result.
type Collector struct {
	proc     *process.Process
	queue    QueueDepther
	interval time.Duration
	logger   *slog.Logger
}

// Config configures a Collector.
type Config struct {
	Queue    QueueDepther
	Interval time.Duration // defaults to 30s
	Logger   *slog.Logger
}

// New creates a Collector bound to the current process.
func New(cfg Config) (*Collector, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Collector{proc: proc, queue: cfg.Queue, interval: cfg.Interval, logger: cfg.Logger}, nil
}

// Run samples and logs a snapshot on every tick until ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := c.sample()
			c.logger.Info("health snapshot",
				"cpu_percent", snap.CPUPercent,
				"rss_bytes", snap.RSSBytes,
				"queue_depth", snap.QueueDepth,
			)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) sample() Snapshot {
	snap := Snapshot{}

	if c.queue != nil {
		snap.QueueDepth = c.queue.Len()
	}

	if pct, err := c.proc.CPUPercent(); err == nil {
		snap.CPUPercent = pct
	}
	if mem, err := c.proc.MemoryInfo(); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}

	return snap
}
