package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("expected default storage sqlite, got %s", cfg.Storage.Type)
	}
	if cfg.Cache.DurableTTL != time.Hour {
		t.Errorf("expected 1h durable TTL, got %s", cfg.Cache.DurableTTL)
	}
	if cfg.RateLimit.FallbackTier != "free" {
		t.Errorf("expected free fallback tier, got %s", cfg.RateLimit.FallbackTier)
	}
	if cfg.RateLimit.CountFailures {
		t.Error("failures must not consume budget by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test-123")
	t.Setenv("LOG_FORMAT", "pretty")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Providers.DeepSeekAPIKey != "sk-test-123" {
		t.Error("provider key not read from environment")
	}
	if cfg.Log.Format != "pretty" {
		t.Errorf("expected pretty log format, got %s", cfg.Log.Format)
	}
}

func TestProvidersKeys(t *testing.T) {
	p := ProvidersConfig{DeepSeekAPIKey: "a", GeminiAPIKey: "b"}
	keys := p.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys["deepseek"] != "a" || keys["gemini"] != "b" {
		t.Errorf("unexpected key map: %v", keys)
	}
	if _, ok := keys["openai"]; ok {
		t.Error("empty keys must be omitted")
	}
}
