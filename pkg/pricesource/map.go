package pricesource

import (
	"fmt"
	"sync"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the price providers based on flags and returns the
// provider resolved from the -price-provider flag, optionally wrapped with
// the -price-fallback-provider.
func Configured() *Fallback {
	m := NewMap()
	m.SetProvider("awattar", configuredAwattar())
	m.SetProvider("spothinta", configuredSpotHinta())

	f := &Fallback{}
	primary := lflag.String("price-provider", "awattar", "Name of the price provider (awattar, spothinta)")
	secondary := lflag.String("price-fallback-provider", "", "Optional price provider used when the primary fails")

	lflag.Do(func() {
		p, err := m.Provider(*primary)
		if err != nil {
			panic(fmt.Errorf("failed to resolve price provider: %w", err))
		}
		f.Primary = p
		if *secondary != "" {
			s, err := m.Provider(*secondary)
			if err != nil {
				panic(fmt.Errorf("failed to resolve fallback price provider: %w", err))
			}
			f.Secondary = s
		}
	})

	return f
}

// Map manages multiple price providers.
type Map struct {
	mu        sync.Mutex
	providers map[string]Provider
}

// NewMap creates a new provider Map.
func NewMap() *Map {
	return &Map{
		providers: make(map[string]Provider),
	}
}

// Provider returns the provider for the given name.
func (m *Map) Provider(name string) (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prov, ok := m.providers[name]; ok {
		return prov, nil
	}
	return nil, fmt.Errorf("unknown price provider: %s", name)
}

// SetProvider sets the provider for the given name. This is primarily used for testing.
func (m *Map) SetProvider(name string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
}
