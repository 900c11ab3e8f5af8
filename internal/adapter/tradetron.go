package adapter

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

// Tradetron is the grouping GET adapter specialization. It batches every
// order in a group into a single request against one shared provider base
// URL, distinguishing webhooks by an `auth-token` query value instead of by
// request target.
//
// Payload shape is grounded on
// original_source/Order_Processor/tests/test_tradetron.py's
// TradetronFormatter.format_params, adapted to the condition-keyed slot
// grammar: four key/value pairs per order (`condition+k`, `..._Quantity_..`,
// `..._Strike_..`, `..._Expiry_..`), numbered sequentially across the whole
// batch.
type Tradetron struct {
	*BaseAdapter
	baseURL     string
	counterSize int
	rng         *rand.Rand

	// mu guards rng and counters: SendBatch runs on the grouping worker
	// goroutine when grouping is enabled, and on concurrent dispatcher
	// goroutines otherwise.
	mu       sync.Mutex
	counters map[string]int
}

// NewTradetron creates a Tradetron adapter. baseURL is the single shared
// provider endpoint every mapped payload is sent to. counterSize bounds how
// many rotating slots a single condition (INDEX_SIDE_OPT) cycles through
// before wrapping back to slot 1.
func NewTradetron(base *BaseAdapter, baseURL string, counterSize int) *Tradetron {
	if counterSize <= 0 {
		counterSize = 1
	}
	return &Tradetron{
		BaseAdapter: base,
		baseURL:     baseURL,
		counterSize: counterSize,
		rng:         rand.New(rand.NewSource(1)),
		counters:    make(map[string]int),
	}
}

// condition returns the INDEX_SIDE_OPT key this order rotates a slot under.
func condition(order *model.Order) string {
	return fmt.Sprintf("%s_%s_%s", order.Index, order.Side, order.OptionType.Short())
}

// nextSlot returns the next 1-based rotating slot for a condition
// (INDEX_SIDE_OPT), wrapping back to 1 once it exceeds counterSize, and
// advances the counter. After N accepted orders sharing a condition, the
// held slot is ((N-1) mod counterSize) + 1.
func (t *Tradetron) nextSlot(order *model.Order) int {
	key := condition(order)
	k := t.counters[key] + 1
	if k > t.counterSize {
		k = 1
	}
	t.counters[key] = k
	return k
}

// MapBatch builds the GET query payload for an entire grouped batch,
// mirroring spec.md §4.8: a single random signal value R in [1, 10000]
// shared by every order in the batch, and four sequentially-numbered
// key/value pairs per order (condition+slot -> R; Quantity/Strike/Expiry
// keyed by INDEX_Field_OPT_Side+slot). The webhook's multiplier scales only
// the Quantity value, applied per destination rather than baked into the
// shared payload.
func (t *Tradetron) MapBatch(batch model.OrderBatch, wh Webhook) (Payload, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := url.Values{}
	q.Set("auth-token", wh.URL)

	signal := fmt.Sprintf("%d", t.rng.Intn(10000)+1)

	n := 1
	for _, order := range batch {
		k := t.nextSlot(order)
		sideCap := strings.Title(strings.ToLower(string(order.Side)))
		opt := order.OptionType.Short()

		qty := order.Quantity
		if wh.Multiplier > 0 {
			qty *= wh.Multiplier
		}

		q.Set(fmt.Sprintf("key%d", n), fmt.Sprintf("%s%d", condition(order), k))
		q.Set(fmt.Sprintf("value%d", n), signal)
		n++

		q.Set(fmt.Sprintf("key%d", n), fmt.Sprintf("%s_Quantity_%s_%s%d", order.Index, opt, sideCap, k))
		q.Set(fmt.Sprintf("value%d", n), fmt.Sprintf("%d", qty))
		n++

		q.Set(fmt.Sprintf("key%d", n), fmt.Sprintf("%s_Strike_%s_%s%d", order.Index, opt, sideCap, k))
		q.Set(fmt.Sprintf("value%d", n), order.Strike)
		n++

		q.Set(fmt.Sprintf("key%d", n), fmt.Sprintf("%s_Expiry_%s_%s%d", order.Index, opt, sideCap, k))
		q.Set(fmt.Sprintf("value%d", n), order.Expiry)
		n++
	}

	return Payload{Method: http.MethodGet, Query: q}, nil
}

// SendBatch sends one grouped batch to every configured webhook (cloning
// the mapped payload per destination, scaling quantity by that webhook's
// multiplier), against the single shared provider base URL, and applies
// the batch-level status to every order's record per spec.md §4.7's "first
// order carries the aggregate status" rule — here every order shares the
// same outcome since they were sent as one request per webhook.
func (t *Tradetron) SendBatch(ctx context.Context, batch model.OrderBatch, webhooks []Webhook) {
	shared, err := t.MapBatch(batch, Webhook{Multiplier: 1})
	if err != nil {
		markAllFailed(batch, err.Error())
		return
	}
	for _, wh := range webhooks {
		q := url.Values{}
		for key, vals := range shared.Query {
			q[key] = append([]string(nil), vals...)
		}
		q.Set("auth-token", wh.URL)
		for key, vals := range shared.Query {
			if strings.HasPrefix(key, "key") && strings.Contains(vals[0], "_Quantity_") && wh.Multiplier > 0 {
				var qty int
				valueKey := "value" + strings.TrimPrefix(key, "key")
				fmt.Sscanf(shared.Query.Get(valueKey), "%d", &qty)
				q.Set(valueKey, fmt.Sprintf("%d", qty*wh.Multiplier))
			}
		}
		if err := t.SendPayload(ctx, t.baseURL, Payload{Method: shared.Method, Query: q}); err != nil {
			markAllFailed(batch, err.Error())
			continue
		}
		markAllSent(batch, time.Now())
	}
}

func markAllFailed(batch model.OrderBatch, reason string) {
	for _, o := range batch {
		o.MarkFailed(reason)
	}
}

func markAllSent(batch model.OrderBatch, at time.Time) {
	for _, o := range batch {
		if o.Status == model.StatusPending {
			o.MarkSent(at)
		}
	}
}
