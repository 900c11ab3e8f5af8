package tradinghours

import (
	"testing"
	"time"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(Config{
		AllowedWeekdays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		TradingStart:     "09:15",
		TradingEnd:       "15:30",
		EnablePremarket:  true,
		PremarketStart:   "09:00",
		EnablePostmarket: true,
		PostmarketEnd:    "15:45",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestAllowed_RegularWindow(t *testing.T) {
	v := testValidator(t)
	at := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC) // Monday
	ok, reason := v.Allowed(at)
	if !ok {
		t.Errorf("expected allowed, got reason %q", reason)
	}
}

func TestAllowed_Weekend(t *testing.T) {
	v := testValidator(t)
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) // Saturday
	ok, _ := v.Allowed(at)
	if ok {
		t.Errorf("expected weekend to be disallowed")
	}
}

func TestAllowed_Premarket(t *testing.T) {
	v := testValidator(t)
	at := time.Date(2026, 8, 3, 9, 5, 0, 0, time.UTC)
	ok, reason := v.Allowed(at)
	if !ok {
		t.Errorf("expected premarket allowed, got reason %q", reason)
	}
}

func TestAllowed_OutsideAllWindows(t *testing.T) {
	v := testValidator(t)
	at := time.Date(2026, 8, 3, 20, 0, 0, 0, time.UTC)
	ok, reason := v.Allowed(at)
	if ok {
		t.Errorf("expected disallowed")
	}
	if reason == "" {
		t.Errorf("expected a reason string")
	}
}

func TestAllowed_BoundaryIsHalfOpen(t *testing.T) {
	v := testValidator(t)
	at := time.Date(2026, 8, 3, 15, 30, 0, 0, time.UTC)
	ok, _ := v.Allowed(at)
	if !ok {
		t.Errorf("expected 15:30 to fall in the postmarket window")
	}

	end := time.Date(2026, 8, 3, 15, 45, 0, 0, time.UTC)
	ok, _ = v.Allowed(end)
	if ok {
		t.Errorf("expected 15:45 (window end, exclusive) to be disallowed")
	}
}
