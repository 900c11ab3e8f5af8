package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

func TestTradetron_MapBatch_BuildsConditionKeyedPairs(t *testing.T) {
	base := New(Config{Name: "tradetron"})
	tt := NewTradetron(base, "https://provider.example/hook", 4)

	o1 := newTestOrder()
	o1.Index, o1.Side, o1.OptionType, o1.Quantity, o1.Strike, o1.Expiry = "NIFTY", model.SideBuy, model.Call, 75, "25000", "2025-10-16"
	o2 := newTestOrder()
	o2.Index, o2.Side, o2.OptionType, o2.Quantity, o2.Strike, o2.Expiry = "NIFTY", model.SideBuy, model.Call, 75, "25100", "2025-10-16"
	batch := model.OrderBatch{o1, o2}

	p, err := tt.MapBatch(batch, Webhook{URL: "V", Multiplier: 3})
	if err != nil {
		t.Fatalf("MapBatch: %v", err)
	}

	if p.Query.Get("auth-token") != "V" {
		t.Errorf("auth-token = %q, want webhook URL %q", p.Query.Get("auth-token"), "V")
	}

	if p.Query.Get("key1") != "NIFTY_BUY_CE1" {
		t.Errorf("key1 = %q, want NIFTY_BUY_CE1", p.Query.Get("key1"))
	}
	signal := p.Query.Get("value1")
	if signal == "" {
		t.Fatalf("value1 (signal) should be populated")
	}
	if p.Query.Get("key2") != "NIFTY_Quantity_CE_Buy1" {
		t.Errorf("key2 = %q, want NIFTY_Quantity_CE_Buy1", p.Query.Get("key2"))
	}
	if p.Query.Get("value2") != "225" {
		t.Errorf("value2 = %q, want 225 (75*3)", p.Query.Get("value2"))
	}
	if p.Query.Get("key3") != "NIFTY_Strike_CE_Buy1" {
		t.Errorf("key3 = %q, want NIFTY_Strike_CE_Buy1", p.Query.Get("key3"))
	}
	if p.Query.Get("key4") != "NIFTY_Expiry_CE_Buy1" {
		t.Errorf("key4 = %q, want NIFTY_Expiry_CE_Buy1", p.Query.Get("key4"))
	}

	if p.Query.Get("key5") != "NIFTY_BUY_CE2" {
		t.Errorf("key5 = %q, want NIFTY_BUY_CE2", p.Query.Get("key5"))
	}
	if p.Query.Get("value5") != signal {
		t.Errorf("value5 = %q, want shared signal %q", p.Query.Get("value5"), signal)
	}
	if p.Query.Get("key6") != "NIFTY_Quantity_CE_Buy2" {
		t.Errorf("key6 = %q, want NIFTY_Quantity_CE_Buy2", p.Query.Get("key6"))
	}
	if p.Query.Get("value6") != "225" {
		t.Errorf("value6 = %q, want 225 (75*3)", p.Query.Get("value6"))
	}
}

func TestTradetron_NextSlot_WrapsAtCounterSizeOneBased(t *testing.T) {
	base := New(Config{Name: "tradetron"})
	tt := NewTradetron(base, "https://provider.example/hook", 2)

	order := newTestOrder()
	order.Index, order.Side, order.OptionType = "NIFTY", model.SideBuy, model.Call

	slots := make([]int, 5)
	for i := range slots {
		slots[i] = tt.nextSlot(order)
	}

	want := []int{1, 2, 1, 2, 1}
	for i, s := range slots {
		if s != want[i] {
			t.Errorf("slot[%d] = %d, want %d", i, s, want[i])
		}
	}
}

func TestTradetron_SendBatch_MarksAllOrdersOnFailure(t *testing.T) {
	base := New(Config{Name: "tradetron", Timeout: time.Millisecond})
	tt := NewTradetron(base, "http://127.0.0.1:0/unreachable", 4)
	batch := model.OrderBatch{newTestOrder(), newTestOrder()}

	tt.SendBatch(context.Background(), batch, []Webhook{{URL: "V", Multiplier: 1}})

	for _, o := range batch {
		if o.Status != model.StatusFailed {
			t.Errorf("status = %v, want FAILED", o.Status)
		}
	}
}
