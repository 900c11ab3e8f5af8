// Package tradinghours gates whether a batch of orders may be dispatched
// right now, based on weekday and time-of-day windows. Per spec.md §4.3 the
// gate applies once per notification batch, not per individual log line.
package tradinghours

import (
	"fmt"
	"time"
)

// Window is a half-open [Start, End) time-of-day window, in minutes since
// midnight.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Validator decides whether the current moment falls inside an allowed
// trading window for an allowed weekday.
type Validator struct {
	allowedWeekdays map[time.Weekday]bool
	regular         Window

	premarketEnabled bool
	premarket        Window

	postmarketEnabled bool
	postmarket        Window
}

// Config configures a Validator. Weekdays use Go's time.Weekday numbering
// (Sunday == 0); start/end are "HH:MM" strings.
type Config struct {
	AllowedWeekdays []time.Weekday
	TradingStart    string
	TradingEnd      string

	EnablePremarket bool
	PremarketStart  string // ends at TradingStart

	EnablePostmarket bool
	PostmarketEnd    string // starts at TradingEnd
}

// New builds a Validator from a Config, parsing its "HH:MM" fields.
func New(cfg Config) (*Validator, error) {
	regularStart, err := parseHHMM(cfg.TradingStart)
	if err != nil {
		return nil, fmt.Errorf("trading_start: %w", err)
	}
	regularEnd, err := parseHHMM(cfg.TradingEnd)
	if err != nil {
		return nil, fmt.Errorf("trading_end: %w", err)
	}

	v := &Validator{
		allowedWeekdays: make(map[time.Weekday]bool, len(cfg.AllowedWeekdays)),
		regular:         Window{StartMinute: regularStart, EndMinute: regularEnd},
	}
	for _, d := range cfg.AllowedWeekdays {
		v.allowedWeekdays[d] = true
	}

	if cfg.EnablePremarket {
		start, err := parseHHMM(cfg.PremarketStart)
		if err != nil {
			return nil, fmt.Errorf("premarket_start: %w", err)
		}
		v.premarketEnabled = true
		v.premarket = Window{StartMinute: start, EndMinute: regularStart}
	}

	if cfg.EnablePostmarket {
		end, err := parseHHMM(cfg.PostmarketEnd)
		if err != nil {
			return nil, fmt.Errorf("postmarket_end: %w", err)
		}
		v.postmarketEnabled = true
		v.postmarket = Window{StartMinute: regularEnd, EndMinute: end}
	}

	return v, nil
}

// Allowed reports whether `at` falls within an active trading window,
// along with a human-readable reason when it does not.
func (v *Validator) Allowed(at time.Time) (bool, string) {
	if !v.allowedWeekdays[at.Weekday()] {
		return false, fmt.Sprintf("%s is not an allowed trading weekday", at.Weekday())
	}

	minute := at.Hour()*60 + at.Minute()

	if inWindow(minute, v.regular) {
		return true, ""
	}
	if v.premarketEnabled && inWindow(minute, v.premarket) {
		return true, ""
	}
	if v.postmarketEnabled && inWindow(minute, v.postmarket) {
		return true, ""
	}

	return false, fmt.Sprintf("%02d:%02d is outside all configured trading windows", at.Hour(), at.Minute())
}

func inWindow(minute int, w Window) bool {
	return minute >= w.StartMinute && minute < w.EndMinute
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out-of-range time %q", s)
	}
	return h*60 + m, nil
}
