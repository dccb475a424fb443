// Package cache provides the two-tier response cache used to deduplicate
// paid LLM calls: a process-memory tier in front of a durable store.
// Caching is advisory — a durable-store failure never fails the caller.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"cartai/internal/core"
)

// Default TTLs for the two tiers. The memory tier is deliberately shorter:
// it exists to absorb bursts of identical requests, while the durable tier
// carries dedup across process restarts.
const (
	DefaultMemoryTTL    = 5 * time.Minute
	DefaultDurableTTL   = time.Hour
	memorySweepInterval = 10 * time.Minute
)

// Key computes the deterministic cache key for a request: a SHA-256 over
// the model, every message (role and full content, image refs included),
// and the effective temperature. Identical inputs always hash identically;
// changing any one field changes the key.
func Key(model string, messages []core.Message, temperature float64) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	// JSON encoding of a struct slice is deterministic (field order is
	// fixed by the type), so it doubles as the canonical form.
	payload, _ := json.Marshal(messages)
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(temperature, 'g', -1, 64)))
	return hex.EncodeToString(h.Sum(nil))
}

// Config holds response cache configuration.
type Config struct {
	// MemoryTTL bounds entries in the in-process tier
	MemoryTTL time.Duration
	// DurableTTL bounds entries written to the durable store
	DurableTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MemoryTTL:  DefaultMemoryTTL,
		DurableTTL: DefaultDurableTTL,
	}
}

// ResponseCache is the two-tier cache. The memory tier is authoritative
// for this process; the durable tier is best-effort.
type ResponseCache struct {
	memory     *gocache.Cache
	store      Store // nil means memory-only
	memoryTTL  time.Duration
	durableTTL time.Duration
}

// New creates a ResponseCache over the given durable store. A nil store
// degrades to memory-only caching.
func New(store Store, cfg Config) *ResponseCache {
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = DefaultMemoryTTL
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = DefaultDurableTTL
	}
	return &ResponseCache{
		memory:     gocache.New(cfg.MemoryTTL, memorySweepInterval),
		store:      store,
		memoryTTL:  cfg.MemoryTTL,
		durableTTL: cfg.DurableTTL,
	}
}

// Get returns the cached response for the key, or nil on miss. The memory
// tier is consulted first (zero I/O); on a durable hit the entry is
// promoted into memory with a freshly bounded TTL. Returned responses
// always carry Cached=true. Durable-store failures degrade to a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) *core.ChatResponse {
	if v, ok := c.memory.Get(key); ok {
		resp := v.(core.ChatResponse)
		resp.Cached = true
		return &resp
	}

	if c.store == nil {
		return nil
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("durable cache read failed, treating as miss", "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	// Promote with a bounded TTL: never longer than the row's remaining
	// lifetime, never longer than the memory tier's own bound.
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if ttl > c.memoryTTL {
		ttl = c.memoryTTL
	}
	c.memory.Set(key, entry.Response, ttl)

	resp := entry.Response
	resp.Cached = true
	return &resp
}

// Set stores a response under the key: synchronously in memory, and
// best-effort in the durable store. The stored copy always has
// Cached=false so a future hit re-marks it.
func (c *ResponseCache) Set(ctx context.Context, key, model string, resp *core.ChatResponse) {
	stored := *resp
	stored.Cached = false
	c.memory.Set(key, stored, c.memoryTTL)

	if c.store == nil {
		return
	}

	entry := &Entry{
		Key:        key,
		Model:      model,
		Response:   stored,
		TokenCount: stored.Usage.TotalTokens,
		ExpiresAt:  time.Now().UTC().Add(c.durableTTL),
	}
	if err := c.store.Set(ctx, entry); err != nil {
		slog.Warn("durable cache write failed, keeping memory-only entry",
			"key", key,
			"error", err,
		)
	}
}

// MemoryLen returns the number of live entries in the memory tier.
func (c *ResponseCache) MemoryLen() int {
	return c.memory.ItemCount()
}

// PurgeExpired deletes expired rows from the durable store. This is the
// explicit maintenance entrypoint; it is never triggered by reads.
func (c *ResponseCache) PurgeExpired(ctx context.Context) (int64, error) {
	c.memory.DeleteExpired()
	if c.store == nil {
		return 0, nil
	}
	return c.store.PurgeExpired(ctx)
}
