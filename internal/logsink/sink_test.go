package logsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stoxxo/signalpipe/internal/model"
)

func TestSink_WritesProviderAndGenericFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	order := model.NewOrder(time.Now(), time.Now())
	order.AdapterName = "algotest"
	order.Index = "NIFTY"
	order.Strike = "25400"
	order.Quantity = 50
	order.StoxxoOrder = "raw,line"
	order.MarkSent(time.Now())

	s.Write(order)
	s.Close()

	day := order.ActualTime.Format("2006-01-02")
	providerPath := filepath.Join(dir, "algotest", day+".csv")
	if _, err := os.Stat(providerPath); err != nil {
		t.Errorf("expected provider csv at %s: %v", providerPath, err)
	}

	genericPath := filepath.Join(dir, "orders.csv")
	if _, err := os.Stat(genericPath); err != nil {
		t.Errorf("expected generic csv at %s: %v", genericPath, err)
	}

	logPath := filepath.Join(dir, "orders.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading orders.log: %v", err)
	}
	if string(data) != "raw,line\n" {
		t.Errorf("orders.log content = %q", data)
	}
}

func TestSink_DoesNotBlockWhenBufferFull(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < channelCapacity+10; i++ {
			s.Write(model.NewOrder(time.Now(), time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Write blocked past buffer capacity")
	}
}
