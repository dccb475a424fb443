package llmclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cartai/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{ProviderName: "testprovider", BaseURL: srv.URL}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer test-key")
	})
}

func TestDoSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("header setter not applied")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing content type on JSON body")
		}
		w.Write([]byte(`{"value":"ok"}`))
	})

	var result struct {
		Value string `json:"value"`
	}
	err := client.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/test",
		Body:     map[string]string{"input": "x"},
	}, &result)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if result.Value != "ok" {
		t.Errorf("got %q", result.Value)
	}
}

func TestDoErrorStatuses(t *testing.T) {
	t.Run("429 becomes rate limit error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
		})

		err := client.Do(context.Background(), Request{Method: http.MethodPost, Endpoint: "/test"}, nil)
		if !core.IsRateLimited(err) {
			t.Fatalf("expected rate-limited error, got %v", err)
		}
	})

	t.Run("500 becomes provider error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
		})

		err := client.Do(context.Background(), Request{Method: http.MethodPost, Endpoint: "/test"}, nil)
		var gwErr *core.GatewayError
		if !errors.As(err, &gwErr) {
			t.Fatalf("expected GatewayError, got %T", err)
		}
		if gwErr.Type != core.ErrorTypeProvider || gwErr.Message != "overloaded" {
			t.Errorf("got %+v", gwErr)
		}
	})

	t.Run("malformed 200 body becomes provider error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		})

		var result map[string]any
		err := client.Do(context.Background(), Request{Method: http.MethodPost, Endpoint: "/test"}, &result)
		var gwErr *core.GatewayError
		if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeProvider {
			t.Fatalf("expected provider error, got %v", err)
		}
	})
}

func TestDoTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	})

	err := client.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/slow",
		Timeout:  20 * time.Millisecond,
	}, nil)
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError on timeout, got %v", err)
	}
	if gwErr.Type != core.ErrorTypeProvider {
		t.Errorf("timeout must be an ordinary provider failure, got %s", gwErr.Type)
	}
}

func TestDoRawStatusPassthrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("accepted"))
	})

	body, status, err := client.DoRaw(context.Background(), Request{Method: http.MethodGet, Endpoint: "/raw"})
	if err != nil {
		t.Fatalf("DoRaw: %v", err)
	}
	if status != http.StatusAccepted || string(body) != "accepted" {
		t.Errorf("got %d %q", status, body)
	}
}
