// Package model holds the canonical order record shared by every pipeline
// component, from the parser that produces it to the adapters and log sink
// that consume it.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Side is the trade direction extracted from the log line's Txn attribute.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OptionType mirrors the CE/PE leg of the parsed symbol.
type OptionType int

const (
	Put  OptionType = 0
	Call OptionType = 1
)

func (o OptionType) String() string {
	if o == Call {
		return "CALL"
	}
	return "PUT"
}

// Short returns the two-letter option code used in outbound payloads.
func (o OptionType) Short() string {
	if o == Call {
		return "CE"
	}
	return "PE"
}

// Exchange and Product are carried through from the log line's opaque
// fields; the core never branches on their values, it only stores and
// forwards them to adapters that may need them for mapping.
type Exchange string

type Product string

// OrderStatus tracks the lifecycle of a dispatched order. Transitions are
// one-way: PENDING never returns once the order has left that state.
type OrderStatus string

const (
	StatusPending OrderStatus = "PENDING"
	StatusSent    OrderStatus = "SENT"
	StatusFailed  OrderStatus = "FAILED"
	StatusSkipped OrderStatus = "SKIPPED"
)

// Order is the canonical record produced by the parser and mutated in place
// as it moves through the dispatcher and adapters.
type Order struct {
	OrderID     string
	StrategyTag string
	Index       string
	Strike      string
	Quantity    int
	Expiry      string // YYYY-MM-DD
	Side        Side
	Exchange    Exchange
	Product     Product
	OptionType  OptionType

	ActualTime time.Time
	ParseTime  time.Time
	SentTime   *time.Time

	StoxxoOrder string // the raw log line, verbatim

	ProcessingGapMs     int64
	PipelineLatencyMs   *int64
	EndToEndLatencyMs   *int64

	MappedOrder any
	AdapterName string
	Status      OrderStatus
	ErrorMessage string
}

// NewOrder constructs an order with a fresh id, PENDING status and the
// processing gap already computed from actual/parse time.
func NewOrder(actual, parseTime time.Time) *Order {
	return &Order{
		OrderID:         uuid.NewString(),
		ActualTime:      actual,
		ParseTime:       parseTime,
		ProcessingGapMs: parseTime.Sub(actual).Milliseconds(),
		Status:          StatusPending,
	}
}

// MarkSent records a successful dispatch: sent_time, pipeline latency and
// end-to-end latency are all derived from it, matching the invariant that a
// SENT order always carries every latency field.
func (o *Order) MarkSent(at time.Time) {
	o.SentTime = &at
	pipeline := at.Sub(o.ParseTime).Milliseconds()
	e2e := at.Sub(o.ActualTime).Milliseconds()
	o.PipelineLatencyMs = &pipeline
	o.EndToEndLatencyMs = &e2e
	o.Status = StatusSent
}

// MarkFailed records a terminal failure without touching sent_time.
func (o *Order) MarkFailed(reason string) {
	o.Status = StatusFailed
	o.ErrorMessage = reason
}

// MarkSkipped records that the order was dropped before dispatch (e.g. an
// inactive adapter).
func (o *Order) MarkSkipped(reason string) {
	o.Status = StatusSkipped
	o.ErrorMessage = reason
}

// WebhookConfig is a single outbound destination; Multiplier scales the
// quantity sent to that specific destination.
type WebhookConfig struct {
	URL        string
	Multiplier int
}

// OrderBatch is an atomic, ordered, non-empty group of orders produced from
// a single filesystem notification. Batch identity is preserved end to end:
// the dispatcher hands the same slice to every adapter.
type OrderBatch []*Order
