package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Source supplies bundles to the catalog. Directory and SQL sources both
// satisfy it.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]*Bundle, error)
}

// Catalog is the in-memory index of loaded bundles, keyed by name. Refresh
// swaps the whole map atomically, so readers never see a half-loaded state.
type Catalog struct {
	sources []Source
	logger  *slog.Logger

	mu          sync.RWMutex
	bundles     map[string]*Bundle
	refreshedAt time.Time
}

func NewCatalog(logger *slog.Logger, sources ...Source) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		sources: sources,
		logger:  logger,
		bundles: map[string]*Bundle{},
	}
}

// Refresh reloads every source. A failing source keeps the previous state
// for its bundles absent; the first error is returned after all sources ran.
func (c *Catalog) Refresh(ctx context.Context) error {
	next := map[string]*Bundle{}
	var firstErr error

	for _, src := range c.sources {
		bundles, err := src.Load(ctx)
		if err != nil {
			c.logger.Error("dataset source load failed", "source", src.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("source %s: %w", src.Name(), err)
			}
			continue
		}
		for _, b := range bundles {
			if prev, dup := next[b.Name]; dup {
				c.logger.Warn("duplicate bundle name, keeping first", "name", b.Name, "kept", prev.Source, "dropped", b.Source)
				continue
			}
			next[b.Name] = b
		}
	}

	c.mu.Lock()
	c.bundles = next
	c.refreshedAt = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Info("dataset.catalog.refreshed", "bundles", len(next), "sources", len(c.sources))
	return firstErr
}

// Get returns the bundle for name.
func (c *Catalog) Get(name string) (*Bundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bundles[name]
	return b, ok
}

// Summary is the catalog listing entry exposed to the API.
type Summary struct {
	Name        string    `json:"name"`
	Title       string    `json:"title,omitempty"`
	Source      string    `json:"source,omitempty"`
	ExtractedAt time.Time `json:"extracted_at,omitempty"`
	Tables      int       `json:"tables"`
	Summaries   int       `json:"summaries"`
	Rows        int       `json:"rows"`
}

// List returns summaries of every loaded bundle, sorted by name.
func (c *Catalog) List() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Summary, 0, len(c.bundles))
	for _, b := range c.bundles {
		out = append(out, Summary{
			Name:        b.Name,
			Title:       b.Title,
			Source:      b.Source,
			ExtractedAt: b.ExtractedAt,
			Tables:      len(b.Tables),
			Summaries:   len(b.Summaries),
			Rows:        b.RowCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of loaded bundles.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bundles)
}

// RefreshedAt returns when the catalog last completed a refresh.
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
