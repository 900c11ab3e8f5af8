// Package cache provides the in-memory, read-mostly lookup tables the
// parser and adapters consult on every order: strategy activation and
// webhook lists, index ids, lot sizes and monthly expiry dates.
//
// This is the in-process counterpart of a pattern this codebase's ancestry
// used for a Redis-backed response cache: here the "store" is a plain Go
// map loaded once from a YAML document, because the pipeline core must not
// depend on an external store (no durable or distributed persistence is in
// scope — see the module's design notes). Reload is a full clear-and-load
// guarded by the same RWMutex that every read takes, so a reload never
// races a reader against a half-populated map.
package cache

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// WebhookYAML mirrors one destination entry in the YAML cache document.
type WebhookYAML struct {
	URL        string `yaml:"url"`
	Multiplier int    `yaml:"multiplier"`
}

// StrategyYAML mirrors one strategy entry in the YAML cache document.
type StrategyYAML struct {
	Name          string        `yaml:"name"`
	Active        bool          `yaml:"active"`
	TradetronURLs []WebhookYAML `yaml:"tradetron_urls"`
	AlgotestURLs  []WebhookYAML `yaml:"algotest_urls"`
}

// document mirrors the full YAML cache document described in spec.md §6.
type document struct {
	Strategies     []StrategyYAML             `yaml:"strategies"`
	IndexMappings  map[string]int             `yaml:"index_mappings"`
	LotSizes       map[string]int             `yaml:"lot_sizes"`
	MonthlyExpiry  map[string]map[string]string `yaml:"monthly_expiry"` // index -> MMM -> YYYY-MM-DD
}

// Webhook is the in-memory form of WebhookYAML.
type Webhook struct {
	URL        string
	Multiplier int
}

// Cache is the ownership root for every lookup table loaded from the YAML
// cache document. Every read takes the read lock, giving point-in-time
// consistency within a single read, and Reload is the only mutator.
type Cache struct {
	mu sync.RWMutex

	strategyActive map[string]bool
	strategyHooks  map[string]map[string][]Webhook // strategy -> provider -> webhooks
	indexMappings  map[string]int
	lotSizes       map[string]int
	monthlyExpiry  map[string]map[string]string

	path string
}

// providers this cache understands, matching the two adapter specializations.
const (
	ProviderTradetron = "tradetron"
	ProviderAlgotest  = "algotest"
)

// New loads a Cache from the YAML file at path.
func New(path string) (*Cache, error) {
	c := &Cache{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload performs a full clear-and-reload from disk. It must not be called
// concurrently with itself (within this module only New calls it);
// concurrent readers are safe because the write lock is held only while the
// new maps are swapped in, not while they are being built.
func (c *Cache) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading cache file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing cache file: %w", err)
	}

	active := make(map[string]bool, len(doc.Strategies))
	hooks := make(map[string]map[string][]Webhook, len(doc.Strategies))
	for _, s := range doc.Strategies {
		active[s.Name] = s.Active
		providerHooks := make(map[string][]Webhook)
		if len(s.TradetronURLs) > 0 {
			providerHooks[ProviderTradetron] = convertWebhooks(s.TradetronURLs)
		}
		if len(s.AlgotestURLs) > 0 {
			providerHooks[ProviderAlgotest] = convertWebhooks(s.AlgotestURLs)
		}
		hooks[s.Name] = providerHooks
	}

	c.mu.Lock()
	c.strategyActive = active
	c.strategyHooks = hooks
	c.indexMappings = doc.IndexMappings
	c.lotSizes = doc.LotSizes
	c.monthlyExpiry = doc.MonthlyExpiry
	c.mu.Unlock()

	return nil
}

func convertWebhooks(in []WebhookYAML) []Webhook {
	out := make([]Webhook, len(in))
	for i, w := range in {
		mult := w.Multiplier
		if mult < 1 {
			mult = 1
		}
		out[i] = Webhook{URL: w.URL, Multiplier: mult}
	}
	return out
}

// StrategyIsActive reports whether a strategy tag is marked active. An
// unknown strategy is treated as inactive.
func (c *Cache) StrategyIsActive(strategy string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategyActive[strategy]
}

// StrategyURLs returns the webhook configs for a (strategy, provider) pair.
// A missing strategy or provider entry returns nil.
func (c *Cache) StrategyURLs(strategy, provider string) []Webhook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hooks, ok := c.strategyHooks[strategy]
	if !ok {
		return nil
	}
	return hooks[provider]
}

// IndexMapping returns the numeric id configured for an index (e.g. NIFTY).
func (c *Cache) IndexMapping(index string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.indexMappings[strings.ToUpper(index)]
	return v, ok
}

// LotSize returns the configured lot size for an index.
func (c *Cache) LotSize(index string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.lotSizes[strings.ToUpper(index)]
	return v, ok
}

// MonthlyExpiry resolves a month-only expiry form (e.g. "OCT") to a
// calendar date for the given index.
func (c *Cache) MonthlyExpiry(index, month3 string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byMonth, ok := c.monthlyExpiry[strings.ToUpper(index)]
	if !ok {
		return "", false
	}
	v, ok := byMonth[strings.ToUpper(month3)]
	return v, ok
}
