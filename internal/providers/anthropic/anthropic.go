// Package anthropic is a placeholder Anthropic integration. The adapter
// registers with the factory so task chains can already name it, but it
// reports itself unavailable until the integration ships.
package anthropic

import (
	"context"

	"cartai/internal/core"
	"cartai/internal/pricing"
	"cartai/internal/providers"
)

const providerType = "anthropic"

// Registration provides factory registration for the Anthropic provider.
var Registration = providers.Registration{
	Type: providerType,
	New:  New,
}

func init() {
	providers.Register(Registration)
}

// Provider is a stub implementation of core.Provider.
type Provider struct {
	keys core.KeyResolver
}

// New creates the stub Anthropic provider.
func New(keys core.KeyResolver) core.Provider {
	return &Provider{keys: keys}
}

// Type returns the provider type string
func (p *Provider) Type() string { return providerType }

// Available is always false; the orchestrator skips this provider in
// every fallback chain.
func (p *Provider) Available() bool { return false }

// SupportsVision is false until the real integration lands.
func (p *Provider) SupportsVision(string) bool { return false }

// CalculateCost returns the dollar cost for the given token counts.
// Pricing is kept current so estimates work ahead of the integration.
func (p *Provider) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	return pricing.Cost(model, inputTokens, outputTokens)
}

// Chat always fails with a configuration error, before any network call.
func (p *Provider) Chat(context.Context, string, []core.Message, *core.ChatOptions) (*core.ChatResponse, error) {
	return nil, core.NewConfigurationError(providerType, "anthropic provider not yet enabled")
}
