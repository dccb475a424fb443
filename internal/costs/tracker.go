package costs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cartai/internal/core"
	"cartai/internal/pricing"
)

// batchFlushThreshold is the batch size that triggers an immediate flush.
const batchFlushThreshold = 50

// Config holds tracker configuration.
type Config struct {
	// BufferSize is the async queue capacity (default: 1000). A full
	// buffer drops records with a warning rather than blocking callers.
	BufferSize int
	// FlushInterval is the periodic flush cadence (default: 5s)
	FlushInterval time.Duration
}

// Tracker appends cost records through an async buffered writer. Writes
// are non-blocking; the flush loop batches them into the store.
type Tracker struct {
	store         Store
	buffer        chan *Record
	done          chan struct{}
	wg            sync.WaitGroup
	writes        sync.WaitGroup // in-flight enqueue calls
	flushInterval time.Duration
	closed        atomic.Bool
}

// NewTracker creates a Tracker and starts its flush goroutine.
func NewTracker(store Store, cfg Config) *Tracker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	t := &Tracker{
		store:         store,
		buffer:        make(chan *Record, cfg.BufferSize),
		done:          make(chan struct{}),
		flushInterval: cfg.FlushInterval,
	}

	t.wg.Add(1)
	go t.flushLoop()

	return t
}

// TrackCall records one completed provider call. Cached responses are a
// no-op: they have zero marginal cost and must never appear in the ledger.
func (t *Tracker) TrackCall(userID string, task core.TaskType, resp *core.ChatResponse, latency time.Duration, metadata map[string]string) {
	if resp == nil || resp.Cached {
		return
	}
	t.enqueue(&Record{
		ID:           uuid.NewString(),
		UserID:       userID,
		TaskType:     string(task),
		Model:        resp.Model,
		Provider:     resp.Provider,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		Cost:         resp.Usage.Cost,
		Success:      true,
		LatencyMs:    latency.Milliseconds(),
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	})
}

// TrackError records a failed provider attempt: zero tokens, zero cost,
// success=false, with the error message preserved for observability.
func (t *Tracker) TrackError(userID string, task core.TaskType, model, provider string, latency time.Duration, message string) {
	t.enqueue(&Record{
		ID:           uuid.NewString(),
		UserID:       userID,
		TaskType:     string(task),
		Model:        model,
		Provider:     provider,
		Success:      false,
		LatencyMs:    latency.Milliseconds(),
		ErrorMessage: message,
		CreatedAt:    time.Now().UTC(),
	})
}

// EstimateCost prices a hypothetical call before any network I/O.
// Unknown models estimate at zero.
func (t *Tracker) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	return pricing.Cost(model, inputTokens, outputTokens)
}

// DailyUsage returns the user's aggregated ledger for the given day.
func (t *Tracker) DailyUsage(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	return t.store.DailyUsage(ctx, userID, day)
}

// PurgeBefore deletes ledger rows older than the cutoff.
func (t *Tracker) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return t.store.PurgeBefore(ctx, cutoff)
}

// enqueue queues a record without blocking. Dropped with a warning when
// the buffer is full or the tracker is shutting down.
func (t *Tracker) enqueue(record *Record) {
	if t.closed.Load() {
		return
	}

	t.writes.Add(1)
	defer t.writes.Done()

	// Close may have flipped closed between the first check and Add.
	if t.closed.Load() {
		return
	}

	select {
	case t.buffer <- record:
	default:
		slog.Warn("cost ledger buffer full, dropping record",
			"user_id", record.UserID,
			"model", record.Model,
		)
	}
}

// Close flushes remaining records and shuts the tracker down. Idempotent.
func (t *Tracker) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.writes.Wait()
	close(t.done)
	t.wg.Wait()

	return t.store.Close()
}

func (t *Tracker) flushLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	batch := make([]*Record, 0, batchFlushThreshold)

	for {
		select {
		case record := <-t.buffer:
			batch = append(batch, record)
			if len(batch) >= batchFlushThreshold {
				t.flushBatch(batch)
				batch = make([]*Record, 0, batchFlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flushBatch(batch)
				batch = make([]*Record, 0, batchFlushThreshold)
			}

		case <-t.done:
			// closed is already set, so no new enqueues can race this
			close(t.buffer)
			for record := range t.buffer {
				batch = append(batch, record)
			}
			if len(batch) > 0 {
				t.flushBatch(batch)
			}
			return
		}
	}
}

func (t *Tracker) flushBatch(batch []*Record) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := t.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write cost batch",
			"error", err,
			"count", len(batch),
		)
	}
}

// RunRetentionLoop purges rows older than the retention period on the
// interval until stop closes. Run it in its own goroutine.
func (t *Tracker) RunRetentionLoop(stop <-chan struct{}, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	purge := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		purged, err := t.store.PurgeBefore(ctx, time.Now().Add(-retention))
		if err != nil {
			slog.Warn("cost ledger retention purge failed", "error", err)
			return
		}
		if purged > 0 {
			slog.Debug("cost ledger retention purge", "purged", purged)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	purge()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-stop:
			return
		}
	}
}
