package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"cartai/internal/core"
)

// fakeStore is an in-memory Store for exercising the durable tier paths.
type fakeStore struct {
	entries map[string]*Entry
	getErr  error
	setErr  error
	gets    int
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*Entry)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (*Entry, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok || !entry.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (f *fakeStore) Set(ctx context.Context, entry *Entry) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[entry.Key] = entry
	return nil
}

func (f *fakeStore) PurgeExpired(ctx context.Context) (int64, error) {
	var purged int64
	for key, entry := range f.entries {
		if !entry.ExpiresAt.After(time.Now()) {
			delete(f.entries, key)
			purged++
		}
	}
	return purged, nil
}

func sampleMessages() []core.Message {
	return []core.Message{
		{Role: "system", Content: "You are a grocery shopping assistant."},
		{Role: "user", Content: "Where is milk cheapest this week?"},
	}
}

func sampleResponse() *core.ChatResponse {
	return &core.ChatResponse{
		Content:      "Milk is cheapest at FreshMart this week.",
		Model:        "deepseek-chat",
		Provider:     "deepseek",
		FinishReason: core.FinishStop,
		Usage: core.TokenUsage{
			InputTokens:  42,
			OutputTokens: 12,
			TotalTokens:  54,
			Cost:         0.0000093,
		},
	}
}

func TestKey(t *testing.T) {
	messages := sampleMessages()

	t.Run("deterministic", func(t *testing.T) {
		a := Key("deepseek-chat", messages, 0.7)
		b := Key("deepseek-chat", sampleMessages(), 0.7)
		if a != b {
			t.Errorf("identical inputs produced different keys: %s vs %s", a, b)
		}
		if len(a) != 64 {
			t.Errorf("expected 64-char hex key, got %d chars", len(a))
		}
	})

	t.Run("model changes key", func(t *testing.T) {
		if Key("deepseek-chat", messages, 0.7) == Key("gpt-4o-mini", messages, 0.7) {
			t.Error("different models produced the same key")
		}
	})

	t.Run("temperature changes key", func(t *testing.T) {
		if Key("deepseek-chat", messages, 0.7) == Key("deepseek-chat", messages, 0.2) {
			t.Error("different temperatures produced the same key")
		}
	})

	t.Run("message content changes key", func(t *testing.T) {
		other := sampleMessages()
		other[1].Content = "Where is bread cheapest this week?"
		if Key("deepseek-chat", messages, 0.7) == Key("deepseek-chat", other, 0.7) {
			t.Error("different messages produced the same key")
		}
	})

	t.Run("image parts change key", func(t *testing.T) {
		withImage := []core.Message{
			{Role: "user", Parts: []core.ContentPart{
				{Type: core.PartText, Text: "What is on this receipt?"},
				{Type: core.PartImage, ImageURL: "https://example.com/receipt.jpg"},
			}},
		}
		otherImage := []core.Message{
			{Role: "user", Parts: []core.ContentPart{
				{Type: core.PartText, Text: "What is on this receipt?"},
				{Type: core.PartImage, ImageURL: "https://example.com/other.jpg"},
			}},
		}
		if Key("gemini-2.0-flash", withImage, 0) == Key("gemini-2.0-flash", otherImage, 0) {
			t.Error("different image refs produced the same key")
		}
	})
}

func TestResponseCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := New(store, DefaultConfig())

	key := Key("deepseek-chat", sampleMessages(), 0.7)
	if got := c.Get(ctx, key); got != nil {
		t.Fatalf("expected miss on empty cache, got %+v", got)
	}

	c.Set(ctx, key, "deepseek-chat", sampleResponse())

	got := c.Get(ctx, key)
	if got == nil {
		t.Fatal("expected hit after Set")
	}
	if !got.Cached {
		t.Error("cached response must report Cached=true")
	}
	if got.Content != sampleResponse().Content {
		t.Errorf("content mismatch: got %q", got.Content)
	}
	if got.Usage.TotalTokens != 54 {
		t.Errorf("usage not preserved: got %d tokens", got.Usage.TotalTokens)
	}

	// The durable row must not carry Cached=true.
	if store.entries[key].Response.Cached {
		t.Error("durable entry stored with Cached=true")
	}
}

func TestResponseCacheMemoryHitSkipsStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := New(store, DefaultConfig())

	key := Key("gpt-4o-mini", sampleMessages(), 0)
	c.Set(ctx, key, "gpt-4o-mini", sampleResponse())

	for i := 0; i < 3; i++ {
		if c.Get(ctx, key) == nil {
			t.Fatal("expected memory hit")
		}
	}
	if store.gets != 0 {
		t.Errorf("memory hits must not touch the durable store, saw %d reads", store.gets)
	}
}

func TestResponseCachePromotion(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := New(store, DefaultConfig())

	// Seed only the durable tier, simulating a restart.
	key := Key("deepseek-chat", sampleMessages(), 0.7)
	store.entries[key] = &Entry{
		Key:       key,
		Model:     "deepseek-chat",
		Response:  *sampleResponse(),
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}

	got := c.Get(ctx, key)
	if got == nil {
		t.Fatal("expected durable hit")
	}
	if !got.Cached {
		t.Error("durable hit must report Cached=true")
	}
	if store.gets != 1 {
		t.Fatalf("expected one durable read, saw %d", store.gets)
	}

	// Second read must be served from memory.
	if c.Get(ctx, key) == nil {
		t.Fatal("expected memory hit after promotion")
	}
	if store.gets != 1 {
		t.Errorf("promotion did not populate memory tier, saw %d durable reads", store.gets)
	}
}

func TestResponseCacheExpiredDurableEntry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := New(store, DefaultConfig())

	key := Key("deepseek-chat", sampleMessages(), 0.7)
	store.entries[key] = &Entry{
		Key:       key,
		Model:     "deepseek-chat",
		Response:  *sampleResponse(),
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	if got := c.Get(ctx, key); got != nil {
		t.Errorf("expired entry must not be served, got %+v", got)
	}
}

func TestResponseCacheStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("read failure degrades to miss", func(t *testing.T) {
		store := newFakeStore()
		store.getErr = errors.New("connection refused")
		c := New(store, DefaultConfig())

		if got := c.Get(ctx, "some-key"); got != nil {
			t.Errorf("expected miss on store error, got %+v", got)
		}
	})

	t.Run("write failure keeps memory entry", func(t *testing.T) {
		store := newFakeStore()
		store.setErr = errors.New("disk full")
		c := New(store, DefaultConfig())

		key := Key("deepseek-chat", sampleMessages(), 0.7)
		c.Set(ctx, key, "deepseek-chat", sampleResponse())

		if got := c.Get(ctx, key); got == nil {
			t.Error("memory entry must survive a durable write failure")
		}
	})

	t.Run("nil store is memory-only", func(t *testing.T) {
		c := New(nil, DefaultConfig())
		key := Key("deepseek-chat", sampleMessages(), 0.7)
		c.Set(ctx, key, "deepseek-chat", sampleResponse())
		if got := c.Get(ctx, key); got == nil {
			t.Error("expected memory hit with nil durable store")
		}
		if _, err := c.PurgeExpired(ctx); err != nil {
			t.Errorf("PurgeExpired with nil store: %v", err)
		}
	})
}

func TestResponseCachePurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := New(store, DefaultConfig())

	store.entries["live"] = &Entry{Key: "live", ExpiresAt: time.Now().Add(time.Hour)}
	store.entries["dead"] = &Entry{Key: "dead", ExpiresAt: time.Now().Add(-time.Hour)}

	purged, err := c.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged row, got %d", purged)
	}
	if _, ok := store.entries["live"]; !ok {
		t.Error("live entry was purged")
	}
}
