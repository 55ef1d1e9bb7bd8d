package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
)

// Registry maps method names to their strategies. Lookups are case
// insensitive; the name used at registration stays the canonical spelling.
// It doubles as the resolver the composite strategies route through.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]ports.Strategy
	canonical  map[string]string
}

// NewRegistry constructs an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: map[string]ports.Strategy{},
		canonical:  map[string]string{},
	}
}

// Register adds a strategy under name. Registering a name twice (in any
// casing) is a wiring bug and fails.
func (r *Registry) Register(name string, s ports.Strategy) error {
	if name == "" || s == nil {
		return fmt.Errorf("register strategy: name and strategy are required")
	}
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.canonical[key]; exists {
		return fmt.Errorf("register strategy: %q already registered", name)
	}
	r.canonical[key] = name
	r.strategies[name] = s
	return nil
}

// Get returns the strategy registered under name. An unknown name is a
// configuration error.
func (r *Registry) Get(name string) (ports.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, ok := r.canonical[strings.ToLower(name)]
	if !ok {
		return nil, autherr.Configf("unknown authentication method %q", name)
	}
	return r.strategies[canonical], nil
}

// Has reports whether a strategy is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.canonical[strings.ToLower(name)]
	return ok
}

// CanonicalName returns the registered spelling for name, or name itself
// when unknown.
func (r *Registry) CanonicalName(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.canonical[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// Names lists the registered method names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
