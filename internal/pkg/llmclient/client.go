// Package llmclient provides a base HTTP client for LLM providers with:
// - Request marshaling/unmarshaling
// - Standardized error parsing into core.GatewayError
// - Per-request timeouts via context
//
// The client deliberately does not retry: provider failures fail fast so
// the orchestrator can advance its fallback chain instead of stacking
// client-level retries on top of orchestration-level failover.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"cartai/internal/core"
	"cartai/internal/pkg/httpclient"
)

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider for error messages
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// DefaultTimeout bounds requests that carry no explicit deadline
	DefaultTimeout time.Duration
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for LLM providers
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new LLM client with the given configuration
func New(config Config, headerSetter HeaderSetter) *Client {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 60 * time.Second
	}
	return &Client{
		httpClient:   httpclient.NewDefaultHTTPClient(),
		config:       config,
		headerSetter: headerSetter,
	}
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client.
// Used by tests to point the client at an httptest server.
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	c := New(config, headerSetter)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // JSON marshaled if not nil
	// Timeout overrides the client default when positive
	Timeout time.Duration
}

// Do executes a request and unmarshals the 200 response into result.
// Non-200 statuses are returned as *core.GatewayError; the orchestrator
// treats any of them as a signal to try the next candidate.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	body, status, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return core.ParseProviderError(c.config.ProviderName, status, body)
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return core.NewProviderError(c.config.ProviderName, http.StatusBadGateway,
				"failed to unmarshal response: "+err.Error(), err)
		}
	}
	return nil
}

// DoRaw executes a request and returns the raw body and status code.
// Transport failures (including timeouts) come back as *core.GatewayError.
func (c *Client) DoRaw(ctx context.Context, req Request) ([]byte, int, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeout or network failure: same failure class as a 5xx, so the
		// fallback chain advances identically.
		return nil, 0, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway,
			"request failed: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway,
			"failed to read response: "+err.Error(), err)
	}

	return body, resp.StatusCode, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewProviderError(c.config.ProviderName, 0,
				"failed to marshal request: "+err.Error(), err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, 0,
			"failed to create request: "+err.Error(), err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	return httpReq, nil
}
