// Package logsink writes dispatched orders to CSV, off the hot path: every
// write is a non-blocking channel send, and a single background goroutine
// owns the file handles, buffering and daily rotation. This is the same
// shape as the pack's market-indicator CSV logger (async channel -> single
// writer goroutine -> bufio-wrapped os.File, flushed on a ticker), adapted
// to write per-provider daily files plus a generic orders.csv/orders.log
// pair instead of one flat file.
package logsink

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

var csvHeader = []string{
	"order_id", "strategy_tag", "index", "strike", "option_type", "side",
	"quantity", "expiry", "adapter", "status", "error_message",
	"actual_time", "sent_time",
}

const channelCapacity = 4096
const flushPeriod = time.Second

// Sink writes every dispatched order to a daily-partitioned, per-provider
// CSV file plus a generic orders.csv, and mirrors each line as plain text
// into orders.log.
type Sink struct {
	baseDir string
	ch      chan *model.Order
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New creates a Sink rooted at baseDir and starts its background writer.
func New(baseDir string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		baseDir: baseDir,
		ch:      make(chan *model.Order, channelCapacity),
		logger:  logger,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Write enqueues an order for persistence. It never blocks: if the
// internal buffer is full the record is dropped and logged, matching the
// queue's backpressure policy.
func (s *Sink) Write(order *model.Order) {
	select {
	case s.ch <- order:
	default:
		s.logger.Warn("log sink buffer full, dropping record", "order_id", order.OrderID)
	}
}

// Close stops accepting writes and waits for the background writer to
// flush and exit.
func (s *Sink) Close() {
	close(s.ch)
	s.wg.Wait()
}

type writerSet struct {
	providerWriters map[string]*dailyWriter
	genericCSV      *dailyWriter
	genericLog      *os.File
}

func (s *Sink) run() {
	defer s.wg.Done()

	ws := &writerSet{providerWriters: make(map[string]*dailyWriter)}
	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()
	defer ws.closeAll()

	for {
		select {
		case order, ok := <-s.ch:
			if !ok {
				return
			}
			s.writeOrder(ws, order)
		case <-ticker.C:
			ws.flushAll()
		}
	}
}

func (s *Sink) writeOrder(ws *writerSet, order *model.Order) {
	day := order.ActualTime.Format("2006-01-02")
	record := orderToRecord(order)

	if order.AdapterName != "" {
		dw, err := ws.providerWriter(s.baseDir, order.AdapterName, day)
		if err != nil {
			s.logger.Error("opening provider log file", "adapter", order.AdapterName, "error", err)
		} else if err := dw.writeRecord(record); err != nil {
			s.logger.Error("writing provider record", "adapter", order.AdapterName, "error", err)
		}
	}

	dw, err := ws.genericWriter(s.baseDir, day)
	if err != nil {
		s.logger.Error("opening generic csv file", "error", err)
		return
	}
	if err := dw.writeRecord(record); err != nil {
		s.logger.Error("writing generic record", "error", err)
	}

	if f, err := ws.genericLogFile(s.baseDir); err == nil {
		fmt.Fprintf(f, "%s\n", order.StoxxoOrder)
	}
}

func orderToRecord(o *model.Order) []string {
	sentTime := ""
	if o.SentTime != nil {
		sentTime = o.SentTime.Format(time.RFC3339)
	}
	return []string{
		o.OrderID,
		o.StrategyTag,
		o.Index,
		o.Strike,
		o.OptionType.String(),
		string(o.Side),
		strconv.Itoa(o.Quantity),
		o.Expiry,
		o.AdapterName,
		string(o.Status),
		o.ErrorMessage,
		o.ActualTime.Format(time.RFC3339),
		sentTime,
	}
}

func (ws *writerSet) providerWriter(baseDir, provider, day string) (*dailyWriter, error) {
	if dw, ok := ws.providerWriters[provider]; ok && dw.day == day {
		return dw, nil
	}
	if dw, ok := ws.providerWriters[provider]; ok {
		dw.close()
	}
	dir := filepath.Join(baseDir, provider)
	dw, err := newDailyWriter(dir, day+".csv", day)
	if err != nil {
		return nil, err
	}
	ws.providerWriters[provider] = dw
	return dw, nil
}

func (ws *writerSet) genericWriter(baseDir, day string) (*dailyWriter, error) {
	if ws.genericCSV != nil && ws.genericCSV.day == day {
		return ws.genericCSV, nil
	}
	if ws.genericCSV != nil {
		ws.genericCSV.close()
	}
	dw, err := newDailyWriter(baseDir, "orders.csv", day)
	if err != nil {
		return nil, err
	}
	ws.genericCSV = dw
	return dw, nil
}

func (ws *writerSet) genericLogFile(baseDir string) (*os.File, error) {
	if ws.genericLog != nil {
		return ws.genericLog, nil
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(baseDir, "orders.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	ws.genericLog = f
	return f, nil
}

func (ws *writerSet) flushAll() {
	for _, dw := range ws.providerWriters {
		dw.flush()
	}
	if ws.genericCSV != nil {
		ws.genericCSV.flush()
	}
	if ws.genericLog != nil {
		ws.genericLog.Sync()
	}
}

func (ws *writerSet) closeAll() {
	for _, dw := range ws.providerWriters {
		dw.close()
	}
	if ws.genericCSV != nil {
		ws.genericCSV.close()
	}
	if ws.genericLog != nil {
		ws.genericLog.Close()
	}
}

// dailyWriter wraps a single CSV file for one calendar day, writing the
// header only when the file is newly created.
type dailyWriter struct {
	day    string
	file   *os.File
	writer *csv.Writer
}

func newDailyWriter(dir, filename, day string) (*dailyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, filename)

	info, statErr := os.Stat(path)
	needsHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
		w.Flush()
	}

	return &dailyWriter{day: day, file: f, writer: w}, nil
}

func (d *dailyWriter) writeRecord(record []string) error {
	return d.writer.Write(record)
}

func (d *dailyWriter) flush() {
	d.writer.Flush()
}

func (d *dailyWriter) close() {
	d.writer.Flush()
	d.file.Close()
}
