// Package pipeline wires every component into a single running system and
// owns its startup/shutdown sequencing, mirroring the teacher's agent.go:
// a struct holding every subsystem, a constructor that builds them from
// config, and a Run(ctx) that fans out goroutines and waits for either an
// error or cancellation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stoxxo/signalpipe/internal/adapter"
	"github.com/stoxxo/signalpipe/internal/cache"
	"github.com/stoxxo/signalpipe/internal/config"
	"github.com/stoxxo/signalpipe/internal/dispatcher"
	"github.com/stoxxo/signalpipe/internal/grouping"
	"github.com/stoxxo/signalpipe/internal/health"
	"github.com/stoxxo/signalpipe/internal/logsink"
	"github.com/stoxxo/signalpipe/internal/model"
	"github.com/stoxxo/signalpipe/internal/parser"
	"github.com/stoxxo/signalpipe/internal/queue"
	"github.com/stoxxo/signalpipe/internal/tailer"
	"github.com/stoxxo/signalpipe/internal/tradinghours"
)

// Pipeline wires cache, tailer, queue, dispatcher, adapters, log sink and
// health collector into one running system.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger

	cache      *cache.Cache
	queue      *queue.BatchQueue
	tailer     *tailer.Tailer
	dispatcher *dispatcher.Dispatcher
	sink       *logsink.Sink
	health     *health.Collector

	groupingQueues []*grouping.Queue
}

// New builds every subsystem from cfg without starting any goroutines.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := cache.New(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}

	p := parser.New(c, parser.Config{
		MinQty: cfg.Monitor.MinQty,
		MaxQty: cfg.Monitor.MaxQty,
		Logger: logger,
	})

	validator, err := tradinghours.New(tradinghours.Config{
		AllowedWeekdays:  intsToWeekdays(cfg.Monitor.AllowedWeekdays),
		TradingStart:     cfg.Monitor.TradingStart,
		TradingEnd:       cfg.Monitor.TradingEnd,
		EnablePremarket:  cfg.Monitor.EnablePremarket,
		PremarketStart:   cfg.Monitor.PremarketStart,
		EnablePostmarket: cfg.Monitor.EnablePostmarket,
		PostmarketEnd:    cfg.Monitor.PostmarketEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("building trading-hours validator: %w", err)
	}

	q := queue.New(queue.Config{Capacity: cfg.System.QueueSize, Logger: logger})

	tl, err := tailer.New(tailer.Config{
		Root:           cfg.Monitor.LogPath,
		TargetFilename: cfg.Monitor.TargetFilename,
		Parser:         p,
		Validator:      validator,
		Queue:          q,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building tailer: %w", err)
	}

	sink := logsink.New(cfg.LogDir, logger)

	adapters, groupingQueues, err := buildAdapters(cfg, c, sink, logger)
	if err != nil {
		return nil, fmt.Errorf("building adapters: %w", err)
	}

	disp := dispatcher.New(dispatcher.Config{Adapters: adapters, Logger: logger})

	healthCollector, err := health.New(health.Config{Queue: q, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("building health collector: %w", err)
	}

	return &Pipeline{
		cfg:            cfg,
		logger:         logger,
		cache:          c,
		queue:          q,
		tailer:         tl,
		dispatcher:     disp,
		sink:           sink,
		health:         healthCollector,
		groupingQueues: groupingQueues,
	}, nil
}

func intsToWeekdays(in []int) []time.Weekday {
	out := make([]time.Weekday, len(in))
	for i, v := range in {
		// config numbers weekdays 0=Monday..6=Sunday; time.Weekday has Sunday=0.
		out[i] = time.Weekday((v + 1) % 7)
	}
	return out
}

// Run starts every subsystem and blocks until ctx is canceled, then
// performs an ordered graceful shutdown: stop accepting new file events,
// close grouping queues (draining partial groups), wait for in-flight
// dispatcher goroutines within a bound, then close the log sink.
func (pl *Pipeline) Run(ctx context.Context) error {
	for _, gq := range pl.groupingQueues {
		gq.Start(ctx)
	}

	errCh := make(chan error, 2)

	go func() {
		errCh <- pl.tailer.Run(ctx)
	}()

	go func() {
		pl.health.Run(ctx)
		errCh <- nil
	}()

	go pl.consumeQueue(ctx)

	select {
	case err := <-errCh:
		pl.shutdown()
		return err
	case <-ctx.Done():
		pl.shutdown()
		return ctx.Err()
	}
}

func (pl *Pipeline) consumeQueue(ctx context.Context) {
	for {
		batch, ok := pl.queue.Dequeue(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		pl.dispatcher.Dispatch(ctx, batch)
	}
}

func (pl *Pipeline) shutdown() {
	for _, gq := range pl.groupingQueues {
		gq.Stop()
	}
	pl.dispatcher.Shutdown()
	pl.sink.Close()
}

// adapterWrapper adapts a BaseAdapter-backed provider into the
// dispatcher.Adapter interface, resolving per-order webhooks from the
// cache and recording every outcome to the log sink.
type adapterWrapper struct {
	name     string
	provider string
	cache    *cache.Cache
	sink     *logsink.Sink

	sendFullBatch func(ctx context.Context, batch model.OrderBatch)
	groupingQueue *grouping.Queue
}

func (w *adapterWrapper) Name() string { return w.name }

func (w *adapterWrapper) Dispatch(ctx context.Context, batch model.OrderBatch) {
	for _, o := range batch {
		o.AdapterName = w.name
	}

	if w.groupingQueue != nil {
		// The grouping worker owns when each order actually gets sent, so
		// it writes the log record itself once the real outcome is known
		// (see the handler passed to grouping.New below) rather than
		// logging a still-PENDING status here.
		for _, o := range batch {
			w.groupingQueue.Enqueue(o)
		}
		return
	}

	w.sendFullBatch(ctx, batch)
	for _, o := range batch {
		w.sink.Write(o)
	}
}

func buildAdapters(cfg *config.Config, c *cache.Cache, sink *logsink.Sink, logger *slog.Logger) ([]dispatcher.Adapter, []*grouping.Queue, error) {
	var adapters []dispatcher.Adapter
	var groupingQueues []*grouping.Queue

	for name, ac := range cfg.Adapters {
		delay, delayActive := ac.OrderDelay()
		base := adapter.New(adapter.Config{
			Name:             name,
			Timeout:          ac.Timeout,
			RateLimitActive:  ac.RateLimitActive,
			RateLimit:        ac.RateLimit,
			RateLimitPeriod:  ac.RateLimitPeriod,
			OrderDelayActive: delayActive,
			OrderDelay:       delay,
			GroupingEnabled:  ac.GroupingEnabled,
			Logger:           logger,
		})

		switch name {
		case cache.ProviderTradetron:
			tt := adapter.NewTradetron(base, ac.BaseURL, ac.CounterSize)
			w := &adapterWrapper{name: name, provider: cache.ProviderTradetron, cache: c, sink: sink}
			if ac.GroupingEnabled {
				gq := grouping.New(ac.GroupLimit, func(ctx context.Context, grouped model.OrderBatch) {
					if len(grouped) == 0 {
						return
					}
					strategy := grouped[0].StrategyTag
					webhooks := toAdapterWebhooks(c.StrategyURLs(strategy, cache.ProviderTradetron))
					tt.SendBatch(ctx, grouped, webhooks)
					for _, o := range grouped {
						sink.Write(o)
					}
				}, logger)
				w.groupingQueue = gq
				groupingQueues = append(groupingQueues, gq)
			} else {
				w.sendFullBatch = func(ctx context.Context, batch model.OrderBatch) {
					byStrategy := make(map[string]model.OrderBatch)
					for _, o := range batch {
						byStrategy[o.StrategyTag] = append(byStrategy[o.StrategyTag], o)
					}
					for strategy, group := range byStrategy {
						webhooks := toAdapterWebhooks(c.StrategyURLs(strategy, cache.ProviderTradetron))
						tt.SendBatch(ctx, group, webhooks)
					}
				}
			}
			adapters = append(adapters, w)

		case cache.ProviderAlgotest:
			at := adapter.NewAlgotest(base, c.LotSize)
			w := &adapterWrapper{name: name, provider: cache.ProviderAlgotest, cache: c, sink: sink}
			w.sendFullBatch = func(ctx context.Context, batch model.OrderBatch) {
				byStrategy := make(map[string]model.OrderBatch)
				for _, o := range batch {
					byStrategy[o.StrategyTag] = append(byStrategy[o.StrategyTag], o)
				}
				for strategy, group := range byStrategy {
					webhooks := toAdapterWebhooks(c.StrategyURLs(strategy, cache.ProviderAlgotest))
					base.DispatchOrders(ctx, group, webhooks, func(ctx context.Context, order *model.Order, wh adapter.Webhook) error {
						return at.SendOrder(ctx, order, wh)
					})
				}
			}
			adapters = append(adapters, w)

		default:
			return nil, nil, fmt.Errorf("unknown adapter provider %q", name)
		}
	}

	return adapters, groupingQueues, nil
}

func toAdapterWebhooks(in []cache.Webhook) []adapter.Webhook {
	out := make([]adapter.Webhook, len(in))
	for i, w := range in {
		out[i] = adapter.Webhook{URL: w.URL, Multiplier: w.Multiplier}
	}
	return out
}
