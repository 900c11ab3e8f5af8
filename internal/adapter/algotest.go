package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/stoxxo/signalpipe/internal/model"
)

// Algotest is the per-order, plain-text POST adapter specialization.
// Grounded on original_source/Order_Processor/tests/algotest.py, which
// posts "{instrument} {action} {lots}" with a text/plain body — no JSON,
// no form encoding.
type Algotest struct {
	*BaseAdapter
	lotSize func(index string) (int, bool)
}

// NewAlgotest creates an Algotest adapter. lotSize resolves an index
// (e.g. "NIFTY") to its configured lot size, used to convert a raw
// quantity into the lots Algotest's payload expects.
func NewAlgotest(base *BaseAdapter, lotSize func(index string) (int, bool)) *Algotest {
	return &Algotest{BaseAdapter: base, lotSize: lotSize}
}

// MapOrder builds the plain-text payload for one order against one
// webhook. Quantity is floor-divided by the index's lot size (and then by
// the webhook's multiplier inverse is not applied — the multiplier scales
// the raw quantity before lot conversion, matching how Tradetron scales
// quantity before emission).
func (a *Algotest) MapOrder(order *model.Order, wh Webhook) (Payload, error) {
	lotSize, ok := a.lotSize(order.Index)
	if !ok || lotSize <= 0 {
		return Payload{}, fmt.Errorf("no lot size configured for index %q", order.Index)
	}

	scaledQty := order.Quantity * wh.Multiplier
	if wh.Multiplier <= 0 {
		scaledQty = order.Quantity
	}
	lots := scaledQty / lotSize
	if lots <= 0 {
		return Payload{}, fmt.Errorf("order quantity %d scales to zero lots for index %q (lot size %d)", order.Quantity, order.Index, lotSize)
	}

	instrument := buildInstrument(order)
	action := string(order.Side)

	body := fmt.Sprintf("%s %s %d", instrument, action, lots)
	return Payload{Method: http.MethodPost, Body: body, ContentType: "text/plain"}, nil
}

// buildInstrument renders INDEX + compact expiry + C/P + strike, e.g.
// "NIFTY251014P25400".
func buildInstrument(order *model.Order) string {
	compact := strings.ReplaceAll(order.Expiry, "-", "")
	if len(compact) == 8 {
		// YYYYMMDD -> YYMMDD, matching the source instrument naming
		compact = compact[2:]
	}
	optCode := "C"
	if order.OptionType == model.Put {
		optCode = "P"
	}
	return fmt.Sprintf("%s%s%s%s", order.Index, compact, optCode, order.Strike)
}

// SendOrder sends a single order to a single webhook. It only reports the
// outcome of this one webhook; BaseAdapter.sendOrder aggregates across all
// of an order's configured webhooks and is the sole writer of the order's
// final status.
func (a *Algotest) SendOrder(ctx context.Context, order *model.Order, wh Webhook) error {
	payload, err := a.MapOrder(order, wh)
	if err != nil {
		return err
	}
	return a.SendPayload(ctx, wh.URL, payload)
}
