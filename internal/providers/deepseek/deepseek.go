// Package deepseek provides DeepSeek API integration. DeepSeek is the
// default backend for text-only tasks because of its pricing.
package deepseek

import (
	"context"
	"net/http"
	"time"

	"cartai/internal/core"
	"cartai/internal/pkg/llmclient"
	"cartai/internal/pricing"
	"cartai/internal/providers"
)

const (
	providerType   = "deepseek"
	defaultBaseURL = "https://api.deepseek.com/v1"
)

// Registration provides factory registration for the DeepSeek provider.
var Registration = providers.Registration{
	Type: providerType,
	New:  New,
}

func init() {
	providers.Register(Registration)
}

// Provider implements the core.Provider interface for DeepSeek
type Provider struct {
	client *llmclient.Client
	keys   core.KeyResolver
}

// New creates a new DeepSeek provider.
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

// SupportsVision is always false: DeepSeek chat models are text-only, so
// multimodal messages are flattened before they reach the wire.
func (p *Provider) SupportsVision(string) bool { return false }

// CalculateCost returns the dollar cost for the given token counts
func (p *Provider) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	return pricing.Cost(model, inputTokens, outputTokens)
}

func (p *Provider) setHeaders(req *http.Request) {
	key, _ := p.keys.APIKey(providerType)
	req.Header.Set("Authorization", "Bearer "+key)
}

// Chat sends a chat completion request to DeepSeek
func (p *Provider) Chat(ctx context.Context, model string, messages []core.Message, opts *core.ChatOptions) (*core.ChatResponse, error) {
	if _, err := p.keys.APIKey(providerType); err != nil {
		return nil, err
	}

	var timeout time.Duration
	if opts != nil {
		timeout = opts.Timeout
	}
	body := providers.BuildCompatRequest(model, messages, opts, false)

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
