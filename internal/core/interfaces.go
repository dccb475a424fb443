// Package core defines the core interfaces and types for the LLM
// orchestration layer.
package core

import "context"

// Provider defines the interface for LLM providers
type Provider interface {
	// Type returns the provider type string ("openai", "gemini", ...)
	Type() string

	// Available reports whether the provider is configured and usable.
	// Unavailable providers are skipped by the orchestrator's fallback chain.
	Available() bool

	// SupportsVision reports whether the given model accepts image parts.
	// Image content must never be forwarded to a model that cannot read it.
	SupportsVision(model string) bool

	// Chat executes a chat completion request against one model
	Chat(ctx context.Context, model string, messages []Message, opts *ChatOptions) (*ChatResponse, error)

	// CalculateCost returns the dollar cost for the given token counts.
	// Unknown models price at zero.
	CalculateCost(model string, inputTokens, outputTokens int) float64
}

// KeyResolver resolves provider API keys. The concrete implementation
// (encrypted key store, env vars) lives outside this subsystem.
type KeyResolver interface {
	// APIKey returns the key for the provider type, or an error if the
	// provider is not configured.
	APIKey(providerType string) (string, error)
}

// PlanLookup returns per-user rate-limit overrides from the subscription
// system. Implementations may fail; callers must degrade to static tier
// defaults and never propagate the error into the request path.
type PlanLookup interface {
	PlanLimits(ctx context.Context, userID string) (*PlanLimits, error)
}

// PlanLimits holds the rate-limit thresholds for one user or tier.
type PlanLimits struct {
	MaxCallsPerMinute int `json:"max_calls_per_minute"`
	MaxCallsPerDay    int `json:"max_calls_per_day"`
	MaxTokensPerDay   int `json:"max_tokens_per_day"`
}

// EnvKeyResolver resolves API keys from a static map, typically populated
// from the environment at startup.
type EnvKeyResolver map[string]string

// APIKey implements KeyResolver.
func (r EnvKeyResolver) APIKey(providerType string) (string, error) {
	key, ok := r[providerType]
	if !ok || key == "" {
		return "", NewConfigurationError(providerType, "no API key configured")
	}
	return key, nil
}
