// Package parser turns one raw CSV log line into a validated canonical
// order, per spec.md §4.2. A rejected line is normal control flow, not an
// error: callers distinguish the two via the boolean Accept return.
package parser

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/stoxxo/signalpipe/internal/cache"
	"github.com/stoxxo/signalpipe/internal/model"
	"github.com/stoxxo/signalpipe/internal/symbol"
)

// Clock lets tests supply a deterministic "now".
type Clock func() time.Time

// Parser decodes log lines into orders.
type Parser struct {
	cache  *cache.Cache
	minQty int
	maxQty int
	now    Clock
	logger *slog.Logger
}

// Config configures a Parser.
type Config struct {
	MinQty int
	MaxQty int
	Now    Clock // defaults to time.Now
	Logger *slog.Logger
}

// New creates a Parser bound to a Cache for strategy-activation and
// monthly-expiry lookups.
func New(c *cache.Cache, cfg Config) *Parser {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Parser{cache: c, minQty: cfg.MinQty, maxQty: cfg.MaxQty, now: cfg.Now, logger: cfg.Logger}
}

// Parse decodes a single CSV line. The second return value is false for any
// line that should be silently dropped (not an accepted candidate, inactive
// strategy, malformed qty, unparsable symbol).
func (p *Parser) Parse(line string) (*model.Order, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return nil, false
	}
	if strings.TrimSpace(fields[1]) != "TRADING" {
		return nil, false
	}
	if !strings.Contains(fields[2], "Initiating Order Placement") {
		return nil, false
	}

	timestampField := strings.TrimSpace(fields[0])
	orderDetails := fields[2]
	strategy := strings.TrimSpace(fields[3])

	if !p.cache.StrategyIsActive(strategy) {
		p.logger.Warn("dropping order for inactive strategy", "strategy", strategy)
		return nil, false
	}

	details := parseDetails(orderDetails)

	symbolRaw, ok := details["Symbol"]
	if !ok {
		return nil, false
	}
	now := p.now()
	parsedSymbol, err := symbol.Parse(symbolRaw, now)
	if err != nil {
		p.logger.Error("symbol parse failed", "symbol", symbolRaw, "error", err)
		return nil, false
	}

	expiry := parsedSymbol.ExpiryDate
	if expiry == "" {
		resolved, ok := p.cache.MonthlyExpiry(parsedSymbol.Index, parsedSymbol.ExpiryMonth3)
		if !ok {
			p.logger.Error("no monthly expiry mapping", "index", parsedSymbol.Index, "month", parsedSymbol.ExpiryMonth3)
			return nil, false
		}
		expiry = resolved
	}

	qtyRaw, ok := details["Qty"]
	if !ok {
		return nil, false
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyRaw))
	if err != nil || qty < p.minQty || qty > p.maxQty {
		return nil, false
	}

	txnRaw, ok := details["Txn"]
	if !ok {
		return nil, false
	}
	side, err := parseSide(txnRaw)
	if err != nil {
		return nil, false
	}

	actual, err := reconcileTimestamp(timestampField, now)
	if err != nil {
		p.logger.Error("timestamp parse failed", "timestamp", timestampField, "error", err)
		return nil, false
	}

	order := model.NewOrder(actual, now)
	order.StrategyTag = strategy
	order.Index = parsedSymbol.Index
	order.Strike = parsedSymbol.Strike
	order.Quantity = qty
	order.Expiry = expiry
	order.Side = side
	order.OptionType = parsedSymbol.OptionType
	order.StoxxoOrder = line

	return order, true
}

// parseDetails splits the free-text order_details field into "key: value"
// attributes separated by ';'.
func parseDetails(raw string) map[string]string {
	out := make(map[string]string)
	for _, seg := range strings.Split(raw, ";") {
		parts := strings.SplitN(seg, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		out[key] = val
	}
	return out
}

func parseSide(raw string) (model.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return model.SideBuy, nil
	case "SELL":
		return model.SideSell, nil
	default:
		return "", errUnknownSide
	}
}

// reconcileTimestamp parses the "HH:MM:SS:mmm" prefix against today's date,
// then shifts by a day in either direction per spec.md §4.2 step 5: a
// timestamp that appears to be in the future is assumed to be from
// yesterday (clock skew near midnight), and one that trails by more than
// 12h is assumed to be from tomorrow's early hours already logged.
func reconcileTimestamp(raw string, now time.Time) (time.Time, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return time.Time{}, errBadTimestamp
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	ms, err4 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return time.Time{}, errBadTimestamp
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), h, m, s, ms*int(time.Millisecond), now.Location())

	if candidate.After(now) {
		candidate = candidate.AddDate(0, 0, -1)
	} else if now.Sub(candidate) > 12*time.Hour {
		candidate = candidate.AddDate(0, 0, 1)
	}

	return candidate, nil
}
