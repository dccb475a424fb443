// Package providers provides the adapter factory and shared wire types
// for LLM providers.
package providers

import (
	"fmt"
	"sort"

	"cartai/internal/core"
)

// Builder creates a provider instance from a key resolver
type Builder func(keys core.KeyResolver) core.Provider

// Registration pairs a provider type string with its builder.
// Provider packages expose one of these and register it from init().
type Registration struct {
	Type string
	New  Builder
}

// registry holds all registered provider builders
var registry = make(map[string]Builder)

// Register allows provider packages to register themselves.
// This should be called from init() functions in provider packages.
func Register(reg Registration) {
	registry[reg.Type] = reg.New
}

// Create instantiates a provider by type string
func Create(providerType string, keys core.KeyResolver) (core.Provider, error) {
	builder, ok := registry[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return builder(keys), nil
}

// ListRegistered returns all registered provider types, sorted.
func ListRegistered() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
