// Package gemini provides Google Gemini API integration via Google's
// OpenAI-compatible endpoint.
package gemini

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cartai/internal/core"
	"cartai/internal/pkg/llmclient"
	"cartai/internal/pricing"
	"cartai/internal/providers"
)

const (
	providerType   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

	// quotaFallbackModel is the cheaper model retried once when the
	// requested model returns HTTP 429. Free-tier Gemini quotas are
	// per-model, so the flash-lite pool usually still has headroom.
	quotaFallbackModel = "gemini-2.0-flash-lite"
)

// Registration provides factory registration for the Gemini provider.
var Registration = providers.Registration{
	Type: providerType,
	New:  New,
}

func init() {
	providers.Register(Registration)
}

// Provider implements the core.Provider interface for Google Gemini
type Provider struct {
	client *llmclient.Client
	keys   core.KeyResolver
}

// New creates a new Gemini provider.
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
// All current gemini-* chat models are multimodal.
func (p *Provider) SupportsVision(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gemini-")
}

// CalculateCost returns the dollar cost for the given token counts
func (p *Provider) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	return pricing.Cost(model, inputTokens, outputTokens)
}

func (p *Provider) setHeaders(req *http.Request) {
	key, _ := p.keys.APIKey(providerType)
	req.Header.Set("Authorization", "Bearer "+key)
}

// Chat sends a chat completion request to Gemini.
//
// On HTTP 429 (per-model quota exhausted) the request is retried exactly
// once against quotaFallbackModel before giving up. Any other status
// propagates immediately: non-quota failures are not transient, and the
// orchestrator owns cross-provider failover.
func (p *Provider) Chat(ctx context.Context, model string, messages []core.Message, opts *core.ChatOptions) (*core.ChatResponse, error) {
	if _, err := p.keys.APIKey(providerType); err != nil {
		return nil, err
	}

	resp, err := p.chatOnce(ctx, model, messages, opts)
	if err == nil {
		return resp, nil
	}

	if core.IsRateLimited(err) && model != quotaFallbackModel {
		slog.Warn("gemini quota exhausted, retrying on fallback model",
			"model", model,
			"fallback_model", quotaFallbackModel,
		)
		return p.chatOnce(ctx, quotaFallbackModel, messages, opts)
	}

	return nil, err
}

func (p *Provider) chatOnce(ctx context.Context, model string, messages []core.Message, opts *core.ChatOptions) (*core.ChatResponse, error) {
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

	out := providers.NormalizeCompatResponse(&resp, providerType, model, p.CalculateCost)
	// Google's compat endpoint echoes "models/<id>"; strip the prefix so
	// the pricing table and cost ledger see the bare model ID.
	out.Model = strings.TrimPrefix(out.Model, "models/")
	out.Usage.Cost = p.CalculateCost(out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)
	return out, nil
}
