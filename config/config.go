// Package config provides environment-driven configuration for the gateway.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Storage   StorageConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Costs     CostsConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// ProvidersConfig holds the vendor API keys. A missing key simply marks
// that provider unavailable; it is not a startup error.
type ProvidersConfig struct {
	DeepSeekAPIKey  string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	AnthropicAPIKey string
}

// Keys returns the non-empty keys indexed by provider type, the shape
// the key resolver consumes.
func (p ProvidersConfig) Keys() map[string]string {
	keys := make(map[string]string)
	for provider, key := range map[string]string{
		"deepseek":  p.DeepSeekAPIKey,
		"openai":    p.OpenAIAPIKey,
		"gemini":    p.GeminiAPIKey,
		"anthropic": p.AnthropicAPIKey,
	} {
		if key != "" {
			keys[provider] = key
		}
	}
	return keys
}

// StorageConfig selects and configures the durable backend
type StorageConfig struct {
	Type          string // sqlite, postgresql or mongodb
	SQLitePath    string
	PostgresURL   string
	PostgresConns int
	MongoURL      string
	MongoDatabase string
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	MemoryTTL  time.Duration
	DurableTTL time.Duration
	// RedisURL switches the durable cache tier to Redis when set
	RedisURL string
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	FallbackTier  string
	CountFailures bool
}

// CostsConfig holds cost tracker configuration
type CostsConfig struct {
	BufferSize    int
	FlushInterval time.Duration
	Retention     time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or pretty
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from the environment, with .env as a
// convenience for local development.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("STORAGE_TYPE", "sqlite")
	viper.SetDefault("SQLITE_PATH", "data/cartai.db")
	viper.SetDefault("POSTGRES_MAX_CONNS", 10)
	viper.SetDefault("MONGODB_DATABASE", "cartai")
	viper.SetDefault("CACHE_MEMORY_TTL", "5m")
	viper.SetDefault("CACHE_DURABLE_TTL", "1h")
	viper.SetDefault("RATE_LIMIT_FALLBACK_TIER", "free")
	viper.SetDefault("RATE_LIMIT_COUNT_FAILURES", false)
	viper.SetDefault("COSTS_BUFFER_SIZE", 1000)
	viper.SetDefault("COSTS_FLUSH_INTERVAL", "5s")
	viper.SetDefault("COSTS_RETENTION", "2160h") // 90 days
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("METRICS_ENABLED", true)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
		},
		Providers: ProvidersConfig{
			DeepSeekAPIKey:  viper.GetString("DEEPSEEK_API_KEY"),
			OpenAIAPIKey:    viper.GetString("OPENAI_API_KEY"),
			GeminiAPIKey:    viper.GetString("GEMINI_API_KEY"),
			AnthropicAPIKey: viper.GetString("ANTHROPIC_API_KEY"),
		},
		Storage: StorageConfig{
			Type:          viper.GetString("STORAGE_TYPE"),
			SQLitePath:    viper.GetString("SQLITE_PATH"),
			PostgresURL:   viper.GetString("POSTGRES_URL"),
			PostgresConns: viper.GetInt("POSTGRES_MAX_CONNS"),
			MongoURL:      viper.GetString("MONGODB_URL"),
			MongoDatabase: viper.GetString("MONGODB_DATABASE"),
		},
		Cache: CacheConfig{
			MemoryTTL:  viper.GetDuration("CACHE_MEMORY_TTL"),
			DurableTTL: viper.GetDuration("CACHE_DURABLE_TTL"),
			RedisURL:   viper.GetString("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			FallbackTier:  viper.GetString("RATE_LIMIT_FALLBACK_TIER"),
			CountFailures: viper.GetBool("RATE_LIMIT_COUNT_FAILURES"),
		},
		Costs: CostsConfig{
			BufferSize:    viper.GetInt("COSTS_BUFFER_SIZE"),
			FlushInterval: viper.GetDuration("COSTS_FLUSH_INTERVAL"),
			Retention:     viper.GetDuration("COSTS_RETENTION"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
		},
	}

	return cfg, nil
}
