package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cartai/internal/core"
	"cartai/internal/providers"
)

type requestLog struct {
	mu     sync.Mutex
	models []string
}

func (l *requestLog) add(model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.models = append(l.models, model)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.models...)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := New(core.EnvKeyResolver{"gemini": "test-key"}).(*Provider)
	p.SetBaseURL(srv.URL)
	return p
}

func decodeModel(t *testing.T, r *http.Request) string {
	t.Helper()
	var req providers.CompatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return req.Model
}

func TestChatQuotaFallback(t *testing.T) {
	log := &requestLog{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		model := decodeModel(t, r)
		log.add(model)
		if model == quotaFallbackModel {
			w.Write([]byte(`{"model":"models/` + quotaFallbackModel + `","choices":[{"message":{"content":"done"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	})

	resp, err := p.Chat(context.Background(), "gemini-2.0-flash",
		[]core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	models := log.all()
	if len(models) != 2 || models[0] != "gemini-2.0-flash" || models[1] != quotaFallbackModel {
		t.Fatalf("expected one retry on the fallback model, saw %v", models)
	}
	if resp.Model != quotaFallbackModel {
		t.Errorf("response model must be the fallback (models/ prefix stripped), got %s", resp.Model)
	}
	if resp.Usage.Cost <= 0 {
		t.Error("cost must be recomputed for the fallback model")
	}
}

func TestChatNoRetryOnOtherErrors(t *testing.T) {
	log := &requestLog{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		log.add(decodeModel(t, r))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"internal"}}`))
	})

	_, err := p.Chat(context.Background(), "gemini-2.0-flash",
		[]core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(log.all()); got != 1 {
		t.Errorf("non-quota failures must not retry, saw %d requests", got)
	}
}

func TestChatNoRetryWhenAlreadyOnFallbackModel(t *testing.T) {
	log := &requestLog{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		log.add(decodeModel(t, r))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	})

	_, err := p.Chat(context.Background(), quotaFallbackModel,
		[]core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
	if !core.IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if got := len(log.all()); got != 1 {
		t.Errorf("fallback model must not retry onto itself, saw %d requests", got)
	}
}

func TestChatMissingKeyFailsBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	p := New(core.EnvKeyResolver{}).(*Provider)
	p.SetBaseURL(srv.URL)

	if p.Available() {
		t.Error("provider without a key must not report available")
	}
	_, err := p.Chat(context.Background(), "gemini-2.0-flash",
		[]core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if called {
		t.Error("missing key must fail before any network call")
	}
}

func TestSupportsVision(t *testing.T) {
	p := New(core.EnvKeyResolver{"gemini": "k"}).(*Provider)
	if !p.SupportsVision("gemini-2.0-flash") {
		t.Error("gemini models are multimodal")
	}
	if p.SupportsVision("gpt-4o") {
		t.Error("non-gemini models are not ours")
	}
}
