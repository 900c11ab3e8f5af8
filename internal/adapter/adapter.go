// Package adapter implements the common webhook-dispatch behavior shared by
// every provider: HTTP retry policy, the four dispatch strategies, and
// per-order/per-webhook status aggregation. Provider specializations
// (tradetron.go, algotest.go) supply only payload mapping.
//
// The HTTP client conventions (context-scoped requests, bounded error-body
// reads) follow the teacher's control-plane client package; the
// goroutine-per-unit-of-work dispatch follows agent.go's fan-out-with-errCh
// shape, adapted here to fan out without a fan-in error channel since a
// failed webhook never aborts its siblings.
package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
	"github.com/stoxxo/signalpipe/internal/ratelimit"
)

// Strategy selects how a batch of orders is fanned out to webhooks.
type Strategy int

const (
	// StrategyGrouped is reported by Strategy when grouping is enabled.
	// DispatchOrders does not handle it: grouped batches go through an
	// external grouping.Queue instead.
	StrategyGrouped Strategy = iota
	StrategyRateLimited
	StrategySequentialDelay
	StrategyFullConcurrency
)

// Payload is the provider-mapped request body, ready to send.
type Payload struct {
	Method      string
	Query       url.Values
	Body        string
	ContentType string
}

// Webhook is a single destination with a per-destination quantity
// multiplier, mirroring cache.Webhook without importing the cache package
// (adapters only need the shape, not the lookup).
type Webhook struct {
	URL        string
	Multiplier int
}

// Config configures a BaseAdapter.
type Config struct {
	Name    string
	Timeout time.Duration

	RateLimitActive bool
	RateLimit       int
	RateLimitPeriod time.Duration

	OrderDelay       time.Duration
	OrderDelayActive bool

	GroupingEnabled bool

	Logger *slog.Logger
}

// BaseAdapter holds the HTTP client and dispatch policy shared by every
// provider.
type BaseAdapter struct {
	name       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	orderDelay time.Duration
	grouped    bool
	logger     *slog.Logger
}

// New creates a BaseAdapter from Config.
func New(cfg Config) *BaseAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &BaseAdapter{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		grouped:    cfg.GroupingEnabled,
		logger:     logger,
	}
	if cfg.RateLimitActive {
		a.limiter = ratelimit.New(cfg.RateLimit, cfg.RateLimitPeriod)
	}
	if cfg.OrderDelayActive {
		a.orderDelay = cfg.OrderDelay
	}
	return a
}

// Name returns the adapter's configured name, used in logs and CSV output.
func (a *BaseAdapter) Name() string { return a.name }

// Strategy reports which dispatch strategy this adapter's configuration
// selects, per precedence: grouping > rate limiting > order delay > full
// concurrency.
func (a *BaseAdapter) Strategy() Strategy {
	switch {
	case a.grouped:
		return StrategyGrouped
	case a.limiter != nil:
		return StrategyRateLimited
	case a.orderDelay > 0:
		return StrategySequentialDelay
	default:
		return StrategyFullConcurrency
	}
}

// DispatchOrders fans an order batch out to webhooks using the configured
// non-grouped strategy (grouped batches are handled by the caller's
// grouping.Queue, not here). Per order, send is invoked once per webhook,
// concurrently, and the per-webhook outcomes are aggregated into a single
// status for that order (§4.7): all succeed -> SENT, some -> FAILED
// ("Sent to k/n URLs..."), none -> FAILED ("Failed to send to all URLs...").
func (a *BaseAdapter) DispatchOrders(ctx context.Context, batch model.OrderBatch, webhooks []Webhook, send func(ctx context.Context, order *model.Order, webhook Webhook) error) {
	switch a.Strategy() {
	case StrategyRateLimited:
		a.dispatchRateLimited(ctx, batch, webhooks, send)
	case StrategySequentialDelay:
		a.dispatchSequentialDelay(ctx, batch, webhooks, send)
	default:
		a.dispatchFullConcurrency(ctx, batch, webhooks, send)
	}
}

func (a *BaseAdapter) dispatchFullConcurrency(ctx context.Context, batch model.OrderBatch, webhooks []Webhook, send func(context.Context, *model.Order, Webhook) error) {
	var wg sync.WaitGroup
	for _, order := range batch {
		wg.Add(1)
		go func(o *model.Order) {
			defer wg.Done()
			a.sendOrder(ctx, o, webhooks, send)
		}(order)
	}
	wg.Wait()
}

func (a *BaseAdapter) dispatchRateLimited(ctx context.Context, batch model.OrderBatch, webhooks []Webhook, send func(context.Context, *model.Order, Webhook) error) {
	var wg sync.WaitGroup
	for _, order := range batch {
		if err := a.limiter.Acquire(1); err != nil {
			a.logger.Error("rate limiter rejected request", "adapter", a.name, "error", err)
			order.MarkFailed(err.Error())
			continue
		}
		wg.Add(1)
		go func(o *model.Order) {
			defer wg.Done()
			a.sendOrder(ctx, o, webhooks, send)
		}(order)
	}
	wg.Wait()
}

func (a *BaseAdapter) dispatchSequentialDelay(ctx context.Context, batch model.OrderBatch, webhooks []Webhook, send func(context.Context, *model.Order, Webhook) error) {
	for i, order := range batch {
		if i > 0 {
			select {
			case <-time.After(a.orderDelay):
			case <-ctx.Done():
				order.MarkFailed("context canceled before send")
				continue
			}
		}
		a.sendOrder(ctx, order, webhooks, send)
	}
}

// sendOrder sends one order to every configured webhook concurrently and
// aggregates the per-webhook outcomes into the order's single final status,
// per the table in §4.7. Apart from the orders that the rate-limited and
// sequential strategies fail before sending (limiter rejection, canceled
// context), which never reach sendOrder, it is the only place that marks an
// order for a non-grouped dispatch, so an order's status is written once.
func (a *BaseAdapter) sendOrder(ctx context.Context, order *model.Order, webhooks []Webhook, send func(context.Context, *model.Order, Webhook) error) {
	if len(webhooks) == 0 {
		order.MarkFailed("no webhooks configured")
		return
	}

	errs := make([]error, len(webhooks))
	var wg sync.WaitGroup
	for i, wh := range webhooks {
		wg.Add(1)
		go func(i int, wh Webhook) {
			defer wg.Done()
			errs[i] = send(ctx, order, wh)
		}(i, wh)
	}
	wg.Wait()

	succeeded := 0
	var messages []string
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			messages = append(messages, err.Error())
			a.logger.Error("order send failed", "adapter", a.name, "order_id", order.OrderID, "error", err)
		}
	}

	switch {
	case succeeded == len(webhooks):
		order.MarkSent(time.Now())
	case succeeded == 0:
		order.MarkFailed(fmt.Sprintf("Failed to send to all URLs. Errors: %s", strings.Join(messages, "; ")))
	default:
		order.MarkFailed(fmt.Sprintf("Sent to %d/%d URLs. Errors: %s", succeeded, len(webhooks), strings.Join(messages, "; ")))
	}
}

// SendPayload performs the HTTP retry policy: a single retry, with
// different handling per outcome.
//   - 2xx: success.
//   - 429 with Retry-After: sleep the indicated duration, then retry once.
//   - 5xx: retry once immediately.
//   - other 4xx: fail immediately, no retry (the request will never
//     succeed unmodified).
//   - timeout or transport error: retry once.
func (a *BaseAdapter) SendPayload(ctx context.Context, webhookURL string, p Payload) error {
	err := a.attempt(ctx, webhookURL, p)
	if err == nil {
		return nil
	}

	outcome, ok := err.(*sendOutcome)
	if !ok {
		return err
	}
	if !outcome.retryable {
		return outcome.err
	}

	if outcome.retryAfter > 0 {
		select {
		case <-time.After(outcome.retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := a.attempt(ctx, webhookURL, p); err != nil {
		if outcome2, ok := err.(*sendOutcome); ok {
			return outcome2.err
		}
		return err
	}
	return nil
}

type sendOutcome struct {
	err        error
	retryable  bool
	retryAfter time.Duration
}

func (s *sendOutcome) Error() string { return s.err.Error() }

func (a *BaseAdapter) attempt(ctx context.Context, webhookURL string, p Payload) error {
	req, err := a.buildRequest(ctx, webhookURL, p)
	if err != nil {
		return &sendOutcome{err: fmt.Errorf("building request: %w", err), retryable: false}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &sendOutcome{err: fmt.Errorf("sending request: %w", err), retryable: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &sendOutcome{err: fmt.Errorf("rate limited by %s: %s", webhookURL, readError(resp)), retryable: true, retryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &sendOutcome{err: fmt.Errorf("server error from %s: %d: %s", webhookURL, resp.StatusCode, readError(resp)), retryable: true}
	case resp.StatusCode >= 400:
		return &sendOutcome{err: fmt.Errorf("client error from %s: %d: %s", webhookURL, resp.StatusCode, readError(resp)), retryable: false}
	default:
		return &sendOutcome{err: fmt.Errorf("unexpected status from %s: %d", webhookURL, resp.StatusCode), retryable: false}
	}
}

func (a *BaseAdapter) buildRequest(ctx context.Context, webhookURL string, p Payload) (*http.Request, error) {
	switch p.Method {
	case http.MethodGet:
		u, err := url.Parse(webhookURL)
		if err != nil {
			return nil, err
		}
		u.RawQuery = p.Query.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	case http.MethodPost:
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBufferString(p.Body))
		if err != nil {
			return nil, err
		}
		if p.ContentType != "" {
			req.Header.Set("Content-Type", p.ContentType)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("unsupported method %q", p.Method)
	}
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return string(body)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return time.Second
}
