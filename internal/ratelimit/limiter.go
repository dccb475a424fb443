// Package ratelimit enforces per-user call and token budgets over two
// independent sliding windows: a short per-minute burst window counting
// calls, and a per-day window counting calls and tokens.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cartai/internal/core"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour

	// DefaultCleanupInterval is how often stale per-user entries are swept.
	DefaultCleanupInterval = time.Hour
)

// Rejection reasons returned in Result.Reason.
const (
	ReasonMinuteCallLimit = "minute_call_limit"
	ReasonDailyCallLimit  = "daily_call_limit"
	ReasonDailyTokenLimit = "daily_token_limit"
)

// window tracks usage since its start instant. A window whose start is
// more than its span in the past is elapsed: its counters are stale and
// are superseded (overwritten, never decremented) by the next Record.
type window struct {
	start  time.Time
	calls  int
	tokens int
}

func (w *window) active(now time.Time, span time.Duration) bool {
	return !w.start.IsZero() && now.Sub(w.start) < span
}

type userWindows struct {
	minute window
	day    window
}

// Result is the structured outcome of a rate-limit check. A rejection is
// a normal result the caller branches on, never an error.
type Result struct {
	Allowed bool      `json:"allowed"`
	Reason  string    `json:"reason,omitempty"`
	ResetAt time.Time `json:"reset_at,omitzero"`

	// Remaining budget in each window at check time.
	RemainingMinuteCalls int `json:"remaining_minute_calls"`
	RemainingDailyCalls  int `json:"remaining_daily_calls"`
	RemainingDailyTokens int `json:"remaining_daily_tokens"`
}

// UserMessage renders the rejection for end users without exposing
// internals. Empty for allowed results.
func (r Result) UserMessage() string {
	if r.Allowed {
		return ""
	}
	return fmt.Sprintf("rate limit reached, try again at %s", r.ResetAt.UTC().Format(time.RFC3339))
}

// Usage is a snapshot of a user's recorded consumption.
type Usage struct {
	MinuteCalls int `json:"minute_calls"`
	DailyCalls  int `json:"daily_calls"`
	DailyTokens int `json:"daily_tokens"`
}

// Config holds limiter configuration.
type Config struct {
	// FallbackTier names the tier used when the plan lookup is absent or
	// fails (default: free)
	FallbackTier string
	// CountFailures makes failed provider attempts consume budget too.
	// Off by default: only successful, non-cached calls are recorded.
	CountFailures bool
}

// Limiter is the process-wide rate limiter. Safe for concurrent use.
type Limiter struct {
	mu    sync.Mutex
	users map[string]*userWindows

	plans         core.PlanLookup // nil means static tiers only
	fallbackTier  string
	countFailures bool

	now func() time.Time // overridable in tests
}

// New creates a Limiter. plans may be nil, in which case every user gets
// the fallback tier's static limits.
func New(cfg Config, plans core.PlanLookup) *Limiter {
	if cfg.FallbackTier == "" {
		cfg.FallbackTier = TierFree
	}
	return &Limiter{
		users:         make(map[string]*userWindows),
		plans:         plans,
		fallbackTier:  cfg.FallbackTier,
		countFailures: cfg.CountFailures,
		now:           time.Now,
	}
}

// CountsFailures reports whether failed attempts consume budget.
func (l *Limiter) CountsFailures() bool { return l.countFailures }

// limitsFor resolves the user's limits: dynamic plan lookup first, static
// tier defaults when the lookup is unavailable or fails. Never errors.
func (l *Limiter) limitsFor(ctx context.Context, userID string) core.PlanLimits {
	if l.plans != nil {
		limits, err := l.plans.PlanLimits(ctx, userID)
		if err == nil && limits != nil {
			return *limits
		}
		if err != nil {
			slog.Debug("plan lookup failed, using tier defaults",
				"user_id", userID,
				"tier", l.fallbackTier,
				"error", err,
			)
		}
	}
	return TierLimits(l.fallbackTier)
}

// Check evaluates both windows against the user's limits. The minute
// window is checked first so bursts are caught before the day budget.
// An elapsed window counts as a fresh, unconsumed budget; Check does not
// reset its stored counters — the next Record overwrites them.
func (l *Limiter) Check(ctx context.Context, userID string) Result {
	limits := l.limitsFor(ctx, userID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.users[userID]
	if !ok {
		return Result{
			Allowed:              true,
			RemainingMinuteCalls: limits.MaxCallsPerMinute,
			RemainingDailyCalls:  limits.MaxCallsPerDay,
			RemainingDailyTokens: limits.MaxTokensPerDay,
		}
	}

	res := Result{
		Allowed:              true,
		RemainingMinuteCalls: limits.MaxCallsPerMinute,
		RemainingDailyCalls:  limits.MaxCallsPerDay,
		RemainingDailyTokens: limits.MaxTokensPerDay,
	}

	if entry.minute.active(now, minuteWindow) {
		res.RemainingMinuteCalls = max(0, limits.MaxCallsPerMinute-entry.minute.calls)
		if entry.minute.calls >= limits.MaxCallsPerMinute {
			res.Allowed = false
			res.Reason = ReasonMinuteCallLimit
			res.ResetAt = entry.minute.start.Add(minuteWindow)
			return res
		}
	}

	if entry.day.active(now, dayWindow) {
		res.RemainingDailyCalls = max(0, limits.MaxCallsPerDay-entry.day.calls)
		res.RemainingDailyTokens = max(0, limits.MaxTokensPerDay-entry.day.tokens)
		if entry.day.calls >= limits.MaxCallsPerDay {
			res.Allowed = false
			res.Reason = ReasonDailyCallLimit
			res.ResetAt = entry.day.start.Add(dayWindow)
			return res
		}
		if entry.day.tokens >= limits.MaxTokensPerDay {
			res.Allowed = false
			res.Reason = ReasonDailyTokenLimit
			res.ResetAt = entry.day.start.Add(dayWindow)
			return res
		}
	}

	return res
}

// Record counts one call and its tokens against both windows. Call it
// exactly once per successful, non-cached provider call. An elapsed
// window is overwritten with a fresh one starting now.
func (l *Limiter) Record(userID string, tokens int) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.users[userID]
	if !ok {
		entry = &userWindows{}
		l.users[userID] = entry
	}

	if entry.minute.active(now, minuteWindow) {
		entry.minute.calls++
	} else {
		entry.minute = window{start: now, calls: 1}
	}

	if entry.day.active(now, dayWindow) {
		entry.day.calls++
		entry.day.tokens += tokens
	} else {
		entry.day = window{start: now, calls: 1, tokens: tokens}
	}
}

// RecordFailure counts a failed attempt, but only when the limiter is
// configured to charge failures; otherwise it is a no-op.
func (l *Limiter) RecordFailure(userID string) {
	if !l.countFailures {
		return
	}
	l.Record(userID, 0)
}

// GetUsage returns the user's recorded consumption in the currently
// active windows. Elapsed windows report zero.
func (l *Limiter) GetUsage(userID string) Usage {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.users[userID]
	if !ok {
		return Usage{}
	}

	var usage Usage
	if entry.minute.active(now, minuteWindow) {
		usage.MinuteCalls = entry.minute.calls
	}
	if entry.day.active(now, dayWindow) {
		usage.DailyCalls = entry.day.calls
		usage.DailyTokens = entry.day.tokens
	}
	return usage
}

// Cleanup drops per-user entries whose day window has elapsed, bounding
// the map's growth. Returns the number of entries removed.
func (l *Limiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	for userID, entry := range l.users {
		if !entry.day.active(now, dayWindow) {
			delete(l.users, userID)
			removed++
		}
	}
	return removed
}

// RunCleanupLoop sweeps stale entries on the interval until stop closes.
// Run it in its own goroutine.
func (l *Limiter) RunCleanupLoop(stop <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := l.Cleanup(); removed > 0 {
				slog.Debug("rate limiter cleanup", "removed", removed)
			}
		case <-stop:
			return
		}
	}
}
