// Package pms holds the adapter registry and shared plumbing for external
// system adapters. Each vendor adapter lives in its own subpackage and owns
// its field mapping and status translation tables.
package pms

import (
	"fmt"
	"sort"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// Registry implements ports.AdapterRegistry over a static map built at
// startup. Registration is not safe for concurrent use; register everything
// before serving.
type Registry struct {
	adapters map[string]ports.PMSAdapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ports.PMSAdapter)}
}

// Register adds an adapter under its source system tag
func (r *Registry) Register(adapter ports.PMSAdapter) {
	r.adapters[adapter.SourceSystem()] = adapter
}

// Resolve returns the adapter for a source system. An unknown source system
// is a config error, never retried.
func (r *Registry) Resolve(sourceSystem string) (ports.PMSAdapter, error) {
	adapter, ok := r.adapters[sourceSystem]
	if !ok {
		return nil, domain.WrapError(domain.ErrorCodeAdapterUnsupported,
			fmt.Sprintf("no adapter registered for source system %q", sourceSystem),
			domain.ErrUnsupportedSourceSystem)
	}
	return adapter, nil
}

// SourceSystems lists the registered source system tags, sorted
func (r *Registry) SourceSystems() []string {
	systems := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		systems = append(systems, name)
	}
	sort.Strings(systems)
	return systems
}
