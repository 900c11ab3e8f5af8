package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stoxxo/signalpipe/internal/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	doc := `
strategies:
  - name: STRAT1
    active: true
    tradetron_urls:
      - url: "https://tradetron.example/hook"
        multiplier: 1
  - name: STRAT_INACTIVE
    active: false
index_mappings:
  NIFTY: 1
lot_sizes:
  NIFTY: 50
monthly_expiry:
  NIFTY:
    OCT: "2026-10-29"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing test cache: %v", err)
	}
	c, err := cache.New(path)
	if err != nil {
		t.Fatalf("loading test cache: %v", err)
	}
	return c
}

func fixedNow(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestParse_AcceptsDayFormExpiry(t *testing.T) {
	c := newTestCache(t)
	now := time.Date(2026, 8, 1, 10, 15, 0, 0, time.UTC)
	p := New(c, Config{MinQty: 1, MaxQty: 10000, Now: fixedNow(now)})

	line := "10:14:59:500,TRADING,Initiating Order Placement; Symbol: NIFTY 28AUG25 24500 CE; Qty: 50; Txn: BUY,STRAT1,false,NSE"

	order, ok := p.Parse(line)
	if !ok {
		t.Fatalf("expected line to be accepted")
	}
	if order.Index != "NIFTY" {
		t.Errorf("index = %q, want NIFTY", order.Index)
	}
	if order.Quantity != 50 {
		t.Errorf("quantity = %d, want 50", order.Quantity)
	}
	if order.Expiry != "2025-08-28" {
		t.Errorf("expiry = %q, want 2025-08-28", order.Expiry)
	}
}

func TestParse_AcceptsMonthOnlyExpiryViaCacheLookup(t *testing.T) {
	c := newTestCache(t)
	now := time.Date(2026, 8, 1, 10, 15, 0, 0, time.UTC)
	p := New(c, Config{MinQty: 1, MaxQty: 10000, Now: fixedNow(now)})

	line := "10:14:59:500,TRADING,Initiating Order Placement; Symbol: NIFTY OCT 24500 PE; Qty: 50; Txn: SELL,STRAT1,false,NSE"

	order, ok := p.Parse(line)
	if !ok {
		t.Fatalf("expected line to be accepted")
	}
	if order.Expiry != "2026-10-29" {
		t.Errorf("expiry = %q, want 2026-10-29", order.Expiry)
	}
}

func TestParse_RejectsNonCandidateLines(t *testing.T) {
	c := newTestCache(t)
	p := New(c, Config{MinQty: 1, MaxQty: 10000})

	cases := []string{
		"10:14:59:500,NOT_TRADING,Initiating Order Placement: Symbol: NIFTY OCT 24500 PE; Qty: 50; Txn: SELL,STRAT1,false,NSE",
		"10:14:59:500,TRADING,Something Else Entirely,STRAT1,false,NSE",
		"too,few,fields",
	}
	for _, line := range cases {
		if _, ok := p.Parse(line); ok {
			t.Errorf("expected line to be rejected: %q", line)
		}
	}
}

func TestParse_RejectsInactiveStrategy(t *testing.T) {
	c := newTestCache(t)
	p := New(c, Config{MinQty: 1, MaxQty: 10000})

	line := "10:14:59:500,TRADING,Initiating Order Placement: Symbol: NIFTY OCT 24500 PE; Qty: 50; Txn: SELL,STRAT_INACTIVE,false,NSE"
	if _, ok := p.Parse(line); ok {
		t.Errorf("expected inactive strategy to be rejected")
	}
}

func TestParse_RejectsOutOfBoundsQty(t *testing.T) {
	c := newTestCache(t)
	p := New(c, Config{MinQty: 1, MaxQty: 100})

	line := "10:14:59:500,TRADING,Initiating Order Placement; Symbol: NIFTY OCT 24500 PE; Qty: 99999; Txn: SELL,STRAT1,false,NSE"
	if _, ok := p.Parse(line); ok {
		t.Errorf("expected out-of-bounds qty to be rejected")
	}
}

func TestReconcileTimestamp_FutureRollsBackADay(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 5, 0, 0, time.UTC)
	got, err := reconcileTimestamp("23:59:59:000", now)
	if err != nil {
		t.Fatalf("reconcileTimestamp: %v", err)
	}
	if got.Day() != 31 || got.Month() != time.July {
		t.Errorf("got %v, want July 31", got)
	}
}

func TestReconcileTimestamp_StaleRollsForwardADay(t *testing.T) {
	now := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)
	got, err := reconcileTimestamp("00:00:10:000", now)
	if err != nil {
		t.Fatalf("reconcileTimestamp: %v", err)
	}
	if got.Day() != 2 || got.Month() != time.August {
		t.Errorf("got %v, want August 2", got)
	}
}
