// Package openai provides OpenAI API integration.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cartai/internal/core"
	"cartai/internal/pkg/llmclient"
	"cartai/internal/pricing"
	"cartai/internal/providers"
)

const (
	providerType   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
)

// Registration provides factory registration for the OpenAI provider.
var Registration = providers.Registration{
	Type: providerType,
	New:  New,
}

func init() {
	providers.Register(Registration)
}

// Provider implements the core.Provider interface for OpenAI
type Provider struct {
	client *llmclient.Client
	keys   core.KeyResolver
}

// New creates a new OpenAI provider.
func New(keys core.KeyResolver) core.Provider {
	p := &Provider{keys: keys}
	p.client = llmclient.New(llmclient.Config{
		ProviderName: providerType,
		BaseURL:      defaultBaseURL,
	}, p.setHeaders)
	return p
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

// Type returns the provider type string
func (p *Provider) Type() string { return providerType }

// Available reports whether an API key is configured.
func (p *Provider) Available() bool {
	_, err := p.keys.APIKey(providerType)
	return err == nil
}

// SupportsVision reports whether the model accepts image parts.
// The gpt-4o and gpt-4.1 families are multimodal.
func (p *Provider) SupportsVision(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-4o") || strings.HasPrefix(m, "gpt-4.1")
}

// CalculateCost returns the dollar cost for the given token counts
func (p *Provider) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	return pricing.Cost(model, inputTokens, outputTokens)
}

// setHeaders sets the required headers for OpenAI API requests
func (p *Provider) setHeaders(req *http.Request) {
	key, _ := p.keys.APIKey(providerType)
	req.Header.Set("Authorization", "Bearer "+key)

	// Forward request ID if present in context for vendor-side tracing.
	// OpenAI requires ASCII-only characters and max 512 bytes.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID checks if the request ID is valid for OpenAI's
// X-Client-Request-Id header: ASCII characters only, max 512 characters.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// Chat sends a chat completion request to OpenAI
func (p *Provider) Chat(ctx context.Context, model string, messages []core.Message, opts *core.ChatOptions) (*core.ChatResponse, error) {
	if _, err := p.keys.APIKey(providerType); err != nil {
		return nil, err
	}

	var timeout time.Duration
	if opts != nil {
		timeout = opts.Timeout
	}
	body := providers.BuildCompatRequest(model, messages, opts, p.SupportsVision(model))

	var resp providers.CompatResponse
	err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     body,
		Timeout:  timeout,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return providers.NormalizeCompatResponse(&resp, providerType, model, p.CalculateCost), nil
}
