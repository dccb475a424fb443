package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cartai/internal/cache"
	"cartai/internal/core"
	"cartai/internal/costs"
	"cartai/internal/orchestrator"
	"cartai/internal/ratelimit"
)

type stubProvider struct {
	typ       string
	available bool
	err       error
}

func (p *stubProvider) Type() string                     { return p.typ }
func (p *stubProvider) Available() bool                  { return p.available }
func (p *stubProvider) SupportsVision(model string) bool { return false }

func (p *stubProvider) Chat(ctx context.Context, model string, messages []core.Message, opts *core.ChatOptions) (*core.ChatResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &core.ChatResponse{
		Content:      "stubbed answer",
		Model:        model,
		Provider:     p.typ,
		FinishReason: core.FinishStop,
		Usage:        core.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func (p *stubProvider) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	return 0
}

type discardStore struct{}

func (discardStore) WriteBatch(ctx context.Context, records []*costs.Record) error { return nil }
func (discardStore) DailyUsage(ctx context.Context, userID string, day time.Time) (*costs.DailySummary, error) {
	return &costs.DailySummary{UserID: userID, Calls: 2, TotalCost: 0.01}, nil
}
func (discardStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (discardStore) Close() error { return nil }

func newTestServer(t *testing.T, providerErr error) *Server {
	t.Helper()
	tracker := costs.NewTracker(discardStore{}, costs.Config{})
	t.Cleanup(func() { tracker.Close() })

	orch := orchestrator.New(orchestrator.Deps{
		Providers: map[string]core.Provider{
			"deepseek": &stubProvider{typ: "deepseek", available: true, err: providerErr},
			"openai":   &stubProvider{typ: "openai", available: false},
			"gemini":   &stubProvider{typ: "gemini", available: false},
		},
		Cache:   cache.New(nil, cache.DefaultConfig()),
		Limiter: ratelimit.New(ratelimit.Config{}, nil),
		Tracker: tracker,
	}, orchestrator.Config{})

	return New(orch, Config{Port: "0"})
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"user_id":"user-1","task_type":"assistant-chat","messages":[{"role":"user","content":"hi"}]}`
	rec := doRequest(s, http.MethodPost, "/v1/chat", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp core.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Provider != "deepseek" {
		t.Errorf("expected deepseek, got %s", resp.Provider)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response must carry a request id")
	}
}

func TestHandleChatValidation(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name string
		body string
	}{
		{"missing user", `{"task_type":"assistant-chat","messages":[{"role":"user","content":"hi"}]}`},
		{"unknown task", `{"user_id":"u","task_type":"bogus","messages":[{"role":"user","content":"hi"}]}`},
		{"empty messages", `{"user_id":"u","task_type":"assistant-chat","messages":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/v1/chat", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleChatExhausted(t *testing.T) {
	s := newTestServer(t, core.NewProviderError("deepseek", 500, "vendor exploded: secret details", nil))

	body := `{"user_id":"user-1","task_type":"assistant-chat","messages":[{"role":"user","content":"hi"}]}`
	rec := doRequest(s, http.MethodPost, "/v1/chat", body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "vendor exploded") {
		t.Error("vendor error text must never reach clients")
	}
	if !strings.Contains(rec.Body.String(), core.UnavailableMessage) {
		t.Error("expected the generic unavailable message")
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"user_id":"user-1","task_type":"assistant-chat","messages":[{"role":"user","content":"hi"}]}`
	// Free tier allows 5 calls per minute; identical bodies would hit the
	// cache, so vary the content.
	for i := 0; i < 5; i++ {
		b := strings.Replace(body, "hi", string(rune('a'+i)), 1)
		if rec := doRequest(s, http.MethodPost, "/v1/chat", b); rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := doRequest(s, http.MethodPost, "/v1/chat", strings.Replace(body, "hi", "z", 1))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp rateLimitedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RateLimit.Allowed {
		t.Error("rejection payload claims allowed=true")
	}
	if resp.RateLimit.ResetAt.IsZero() {
		t.Error("rejection must tell the caller when to retry")
	}
}

func TestHandleRateLimitQuery(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/v1/rate-limit?user_id=user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result ratelimit.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Allowed {
		t.Error("fresh user must be allowed")
	}

	if rec := doRequest(s, http.MethodGet, "/v1/rate-limit", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id must 400, got %d", rec.Code)
	}
}

func TestHandleDailyUsage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/v1/usage/daily?user_id=user-1&day=2026-08-28", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := doRequest(s, http.MethodGet, "/v1/usage/daily?user_id=user-1&day=today", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad day format must 400, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
