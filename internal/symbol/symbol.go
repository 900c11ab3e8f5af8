// Package symbol decodes the composite "Symbol" attribute of a log line's
// order details into index, expiry, strike and option type, per the three
// expiry dialects spec.md §4.2 enumerates. Matching is case-insensitive and
// tolerates repeated whitespace, mirroring the regex prototypes this was
// ported from (original_source/Order_Processor/tests/regex_expiry_parser.py
// and regex_symbol_parser.py).
package symbol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

var (
	dayFormRe  = regexp.MustCompile(`^(\d{1,2})(?:ST|ND|RD|TH)?\s+([A-Z]{3})(?:\s+(\d{2}))?$`)
	compactRe  = regexp.MustCompile(`^(\d{2})([A-Z]{3})(\d{2})$`)
	monthOnlyRe = regexp.MustCompile(`^([A-Z]{3})(\d{2})?$`)
)

var month3ToNum = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

// Parsed holds the decoded symbol. Exactly one of ExpiryDate or
// ExpiryMonth3 is set: day-bearing and compact forms resolve directly to a
// calendar date, month-only forms need a cache lookup the caller performs.
type Parsed struct {
	Index        string
	Strike       string
	OptionType   model.OptionType
	ExpiryDate   string // YYYY-MM-DD, set for day-bearing/compact forms
	ExpiryMonth3 string // e.g. "OCT", set for month-only forms
}

// Parse decodes a "Symbol" attribute of the form "INDEX <EXPIRY> <STRIKE>
// <OPT>". now is used to resolve a missing year in day-bearing forms to the
// current year.
func Parse(raw string, now time.Time) (Parsed, error) {
	fields := strings.Fields(strings.ToUpper(strings.TrimSpace(raw)))
	if len(fields) < 4 {
		return Parsed{}, fmt.Errorf("symbol %q: expected at least 4 space-separated fields", raw)
	}

	index := fields[0]
	opt := fields[len(fields)-1]
	strike := fields[len(fields)-2]
	expiryStr := strings.Join(fields[1:len(fields)-2], " ")

	optType, err := parseOption(opt)
	if err != nil {
		return Parsed{}, fmt.Errorf("symbol %q: %w", raw, err)
	}

	p := Parsed{Index: index, Strike: strike, OptionType: optType}

	if m := dayFormRe.FindStringSubmatch(expiryStr); m != nil {
		date, err := resolveDayForm(m[1], m[2], m[3], now)
		if err != nil {
			return Parsed{}, fmt.Errorf("symbol %q: %w", raw, err)
		}
		p.ExpiryDate = date
		return p, nil
	}

	if len(fields[1:len(fields)-2]) == 1 {
		if m := compactRe.FindStringSubmatch(expiryStr); m != nil {
			date, err := resolveCompact(m[1], m[2], m[3])
			if err != nil {
				return Parsed{}, fmt.Errorf("symbol %q: %w", raw, err)
			}
			p.ExpiryDate = date
			return p, nil
		}

		if m := monthOnlyRe.FindStringSubmatch(expiryStr); m != nil {
			if _, ok := month3ToNum[m[1]]; !ok {
				return Parsed{}, fmt.Errorf("symbol %q: unknown month %q", raw, m[1])
			}
			p.ExpiryMonth3 = m[1]
			return p, nil
		}
	}

	return Parsed{}, fmt.Errorf("symbol %q: unrecognized expiry form %q", raw, expiryStr)
}

func parseOption(tok string) (model.OptionType, error) {
	switch tok {
	case "CE", "C":
		return model.Call, nil
	case "PE", "P":
		return model.Put, nil
	default:
		return 0, fmt.Errorf("unrecognized option type %q", tok)
	}
}

func resolveDayForm(dayStr, month3, yearStr string, now time.Time) (string, error) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid day %q", dayStr)
	}
	month, ok := month3ToNum[month3]
	if !ok {
		return "", fmt.Errorf("unknown month %q", month3)
	}
	year := now.Year()
	if yearStr != "" {
		yy, err := strconv.Atoi(yearStr)
		if err != nil {
			return "", fmt.Errorf("invalid year %q", yearStr)
		}
		year = 2000 + yy
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

func resolveCompact(dayStr, month3, yearStr string) (string, error) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("invalid day %q", dayStr)
	}
	month, ok := month3ToNum[month3]
	if !ok {
		return "", fmt.Errorf("unknown month %q", month3)
	}
	yy, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", fmt.Errorf("invalid year %q", yearStr)
	}
	return fmt.Sprintf("%04d-%02d-%02d", 2000+yy, month, day), nil
}

// Reproduce renders a day-bearing tuple back into "INDEX EXPIRY STRIKE OPT"
// form for the symbol-parser idempotence property tests rely on.
func Reproduce(index, expiryDate, strike string, opt model.OptionType) (string, error) {
	t, err := time.Parse("2006-01-02", expiryDate)
	if err != nil {
		return "", fmt.Errorf("reproduce: %w", err)
	}
	month3 := strings.ToUpper(t.Format("Jan"))
	return fmt.Sprintf("%s %d %s %02d %s %s", index, t.Day(), month3, t.Year()%100, strike, opt.Short()), nil
}
