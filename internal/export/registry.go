package export

import (
	"fmt"
	"sort"
	"sync"

	"github.com/adaeze-okafor/stats-exporter/constants"
)

// Registry maps format keys to exporters. It is built once at process start
// and injected into the manager; there is no package-level instance.
type Registry struct {
	mu        sync.RWMutex
	exporters map[constants.Format]Exporter
}

func NewRegistry() *Registry {
	return &Registry{exporters: make(map[constants.Format]Exporter)}
}

// Register adds an exporter for a format. Registering the same format twice
// is a wiring bug and fails loudly.
func (r *Registry) Register(format constants.Format, exp Exporter) error {
	if exp == nil {
		return fmt.Errorf("register %q: nil exporter", format)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exporters[format]; exists {
		return fmt.Errorf("register %q: already registered", format)
	}
	r.exporters[format] = exp
	return nil
}

// Resolve returns the exporter for a format, or false if none is registered.
func (r *Registry) Resolve(format constants.Format) (Exporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.exporters[format]
	return exp, ok
}

// Formats lists the registered format keys, sorted.
func (r *Registry) Formats() []constants.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]constants.Format, 0, len(r.exporters))
	for f := range r.exporters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
