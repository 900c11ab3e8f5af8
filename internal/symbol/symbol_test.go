package symbol

import (
	"testing"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

var fixedNow = time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

func TestParse_DayBearingWithOrdinalSuffix(t *testing.T) {
	p, err := Parse("NIFTY 28TH AUG 25 24500 CE", fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ExpiryDate != "2025-08-28" {
		t.Errorf("ExpiryDate = %q, want 2025-08-28", p.ExpiryDate)
	}
	if p.OptionType != model.Call {
		t.Errorf("OptionType = %v, want Call", p.OptionType)
	}
}

func TestParse_DayBearingWithoutYearDefaultsToNow(t *testing.T) {
	p, err := Parse("NIFTY 28 AUG 24500 PE", fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ExpiryDate != "2025-08-28" {
		t.Errorf("ExpiryDate = %q, want 2025-08-28", p.ExpiryDate)
	}
}

func TestParse_CompactForm(t *testing.T) {
	p, err := Parse("BANKNIFTY 28AUG25 52000 CE", fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ExpiryDate != "2025-08-28" {
		t.Errorf("ExpiryDate = %q, want 2025-08-28", p.ExpiryDate)
	}
	if p.Index != "BANKNIFTY" {
		t.Errorf("Index = %q", p.Index)
	}
}

func TestParse_MonthOnlyForm(t *testing.T) {
	p, err := Parse("NIFTY OCT 24500 PE", fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ExpiryMonth3 != "OCT" {
		t.Errorf("ExpiryMonth3 = %q, want OCT", p.ExpiryMonth3)
	}
	if p.ExpiryDate != "" {
		t.Errorf("ExpiryDate should be empty for month-only form, got %q", p.ExpiryDate)
	}
}

func TestParse_CaseInsensitiveAndExtraWhitespace(t *testing.T) {
	p, err := Parse("nifty   28th   aug   25   24500   ce", fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ExpiryDate != "2025-08-28" {
		t.Errorf("ExpiryDate = %q, want 2025-08-28", p.ExpiryDate)
	}
}

func TestParse_RejectsUnknownOptionType(t *testing.T) {
	if _, err := Parse("NIFTY 28AUG25 24500 XX", fixedNow); err == nil {
		t.Errorf("expected error for unknown option type")
	}
}

func TestReproduce_RoundTripsDayBearingForm(t *testing.T) {
	original, err := Parse("NIFTY 28AUG25 24500 CE", fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	reproduced, err := Reproduce(original.Index, original.ExpiryDate, original.Strike, original.OptionType)
	if err != nil {
		t.Fatalf("Reproduce: %v", err)
	}

	roundTripped, err := Parse(reproduced, fixedNow)
	if err != nil {
		t.Fatalf("re-parsing reproduced symbol %q: %v", reproduced, err)
	}

	if roundTripped.ExpiryDate != original.ExpiryDate || roundTripped.Strike != original.Strike || roundTripped.OptionType != original.OptionType {
		t.Errorf("round trip mismatch: got %+v, want %+v", roundTripped, original)
	}
}
