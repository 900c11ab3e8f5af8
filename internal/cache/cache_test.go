package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestCache(t *testing.T, doc string) *Cache {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing cache file: %v", err)
	}
	c, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

const sampleDoc = `
strategies:
  - name: STRAT1
    active: true
    tradetron_urls:
      - url: "https://tradetron.example/a"
        multiplier: 2
    algotest_urls:
      - url: "https://algotest.example/b"
  - name: STRAT2
    active: false
index_mappings:
  NIFTY: 1
  BANKNIFTY: 2
lot_sizes:
  NIFTY: 50
monthly_expiry:
  NIFTY:
    OCT: "2026-10-29"
`

func TestCache_RoundTripsYAML(t *testing.T) {
	c := writeTestCache(t, sampleDoc)

	if !c.StrategyIsActive("STRAT1") {
		t.Errorf("expected STRAT1 active")
	}
	if c.StrategyIsActive("STRAT2") {
		t.Errorf("expected STRAT2 inactive")
	}
	if c.StrategyIsActive("UNKNOWN") {
		t.Errorf("expected unknown strategy to be inactive")
	}

	urls := c.StrategyURLs("STRAT1", ProviderTradetron)
	if len(urls) != 1 || urls[0].Multiplier != 2 {
		t.Errorf("tradetron urls = %+v", urls)
	}

	algoURLs := c.StrategyURLs("STRAT1", ProviderAlgotest)
	if len(algoURLs) != 1 || algoURLs[0].Multiplier != 1 {
		t.Errorf("algotest urls = %+v, want multiplier defaulted to 1", algoURLs)
	}

	if v, ok := c.IndexMapping("nifty"); !ok || v != 1 {
		t.Errorf("IndexMapping(nifty) = %d, %v", v, ok)
	}
	if v, ok := c.LotSize("NIFTY"); !ok || v != 50 {
		t.Errorf("LotSize(NIFTY) = %d, %v", v, ok)
	}
	if v, ok := c.MonthlyExpiry("NIFTY", "oct"); !ok || v != "2026-10-29" {
		t.Errorf("MonthlyExpiry = %q, %v", v, ok)
	}
}

func TestCache_ReloadReplacesContentsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	os.WriteFile(path, []byte(sampleDoc), 0o644)

	c, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	updated := `
strategies:
  - name: STRAT1
    active: false
`
	os.WriteFile(path, []byte(updated), 0o644)
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if c.StrategyIsActive("STRAT1") {
		t.Errorf("expected STRAT1 to be inactive after reload")
	}
	if _, ok := c.IndexMapping("NIFTY"); ok {
		t.Errorf("expected index mappings to be cleared after reload to a document without them")
	}
}
