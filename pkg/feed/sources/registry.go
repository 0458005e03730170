package sources

import (
	"fmt"
	"sync"
)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a source factory to the registry under its type name.
func Register(sourceType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[sourceType] = factory
}

// Create creates a new source instance by type.
func Create(sourceType, name string, config map[string]interface{}) (Source, error) {
	mu.RLock()
	factory, ok := registry[sourceType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, sourceType)
	}
	return factory(name, config)
}

// List returns all registered source type names.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func init() {
	Register("generic", NewGenericSource)
	Register("binance", NewBinanceSource)
	Register("coingecko", NewCoinGeckoSource)
	Register("dexpool", NewDexPoolSource)
	Register("lpnav", NewLPNavSource)
	Register("inverse", NewInverseSource)
}
