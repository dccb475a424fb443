// Package orchestrator composes the cache, rate limiter, providers and
// cost tracker into the single request pipeline application code calls.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cartai/internal/cache"
	"cartai/internal/core"
	"cartai/internal/costs"
	"cartai/internal/observability"
	"cartai/internal/ratelimit"
)

// DefaultCostRetention bounds how long ledger rows are kept.
const DefaultCostRetention = 90 * 24 * time.Hour

// ChatResult is the structured outcome of a chat request. Exactly one of
// Response and RateLimit is set; a rate-limit rejection is a normal
// result, not an error.
type ChatResult struct {
	Response  *core.ChatResponse
	RateLimit *ratelimit.Result
}

// Rejected reports whether the request was stopped by the rate limiter.
func (r *ChatResult) Rejected() bool {
	return r != nil && r.RateLimit != nil
}

// Deps are the collaborators the orchestrator composes. Training and
// Metrics are optional.
type Deps struct {
	Providers map[string]core.Provider
	Cache     *cache.ResponseCache
	Limiter   *ratelimit.Limiter
	Tracker   *costs.Tracker
	Training  *TrainingCapture
	Metrics   *observability.Metrics
}

// Config holds orchestrator configuration.
type Config struct {
	// Chains overrides the per-task fallback chains (default: DefaultChains)
	Chains map[core.TaskType]Chain
	// CostRetention bounds ledger history for PurgeExpired (default: 90d)
	CostRetention time.Duration
}

// Orchestrator routes chat requests through cache, rate limiting and the
// per-task provider fallback chain.
type Orchestrator struct {
	providers     map[string]core.Provider
	chains        map[core.TaskType]Chain
	cache         *cache.ResponseCache
	limiter       *ratelimit.Limiter
	tracker       *costs.Tracker
	training      *TrainingCapture
	metrics       *observability.Metrics
	costRetention time.Duration
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	chains := cfg.Chains
	if chains == nil {
		chains = DefaultChains()
	}
	retention := cfg.CostRetention
	if retention <= 0 {
		retention = DefaultCostRetention
	}
	return &Orchestrator{
		providers:     deps.Providers,
		chains:        chains,
		cache:         deps.Cache,
		limiter:       deps.Limiter,
		tracker:       deps.Tracker,
		training:      deps.Training,
		metrics:       deps.Metrics,
		costRetention: retention,
	}
}

// Chat is the single entry point: resolve the task's candidate chain,
// serve from cache when possible, enforce the user's rate limits, then
// walk the chain until one provider succeeds. Only full exhaustion of
// the chain returns an error.
func (o *Orchestrator) Chat(ctx context.Context, userID string, task core.TaskType, messages []core.Message, opts *core.ChatOptions) (*ChatResult, error) {
	chain, ok := o.chains[task]
	if !ok || len(chain.Candidates) == 0 {
		return nil, core.NewConfigurationError("orchestrator", fmt.Sprintf("no provider chain for task type %q", task))
	}
	if len(messages) == 0 {
		return nil, core.NewConfigurationError("orchestrator", "messages must not be empty")
	}

	temperature := chain.Temperature
	if opts != nil && opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	// An explicit model override replaces the primary candidate's model;
	// fallback candidates keep their own.
	keyModel := chain.Primary().Model
	if opts != nil && opts.Model != "" {
		keyModel = opts.Model
	}

	key := cache.Key(keyModel, messages, temperature)
	if resp := o.cache.Get(ctx, key); resp != nil {
		o.metrics.ObserveCacheHit(string(task))
		o.metrics.ObserveRequest(string(task), observability.OutcomeCached)
		slog.Debug("cache hit",
			"request_id", core.GetRequestID(ctx),
			"task", task,
			"model", resp.Model,
		)
		return &ChatResult{Response: resp}, nil
	}

	if rl := o.limiter.Check(ctx, userID); !rl.Allowed {
		o.metrics.ObserveRateLimited(rl.Reason)
		o.metrics.ObserveRequest(string(task), observability.OutcomeRateLimited)
		slog.Info("request rate limited",
			"request_id", core.GetRequestID(ctx),
			"user_id", userID,
			"reason", rl.Reason,
			"reset_at", rl.ResetAt,
		)
		return &ChatResult{RateLimit: &rl}, nil
	}

	callOpts := o.callOptions(opts, temperature)

	var (
		lastErr  error
		attempts int
	)
	for i, cand := range chain.Candidates {
		provider, ok := o.providers[cand.Provider]
		if !ok || !provider.Available() {
			slog.Debug("skipping unavailable provider",
				"request_id", core.GetRequestID(ctx),
				"provider", cand.Provider,
			)
			continue
		}

		model := cand.Model
		if i == 0 && opts != nil && opts.Model != "" {
			model = opts.Model
		}

		attempts++
		start := time.Now()
		resp, err := provider.Chat(ctx, model, messages, callOpts)
		latency := time.Since(start)
		if err != nil {
			lastErr = err
			o.metrics.ObserveProviderCall(cand.Provider, "error", latency.Seconds())
			o.tracker.TrackError(userID, task, model, cand.Provider, latency, err.Error())
			o.limiter.RecordFailure(userID)
			slog.Warn("provider attempt failed, advancing fallback chain",
				"request_id", core.GetRequestID(ctx),
				"provider", cand.Provider,
				"model", model,
				"error", err,
			)
			continue
		}

		o.metrics.ObserveProviderCall(cand.Provider, "ok", latency.Seconds())
		o.metrics.ObserveCost(resp.Provider, resp.Model, resp.Usage.Cost)
		o.metrics.ObserveRequest(string(task), observability.OutcomeOK)

		o.cache.Set(ctx, key, resp.Model, resp)
		o.limiter.Record(userID, resp.Usage.TotalTokens)
		o.tracker.TrackCall(userID, task, resp, latency, map[string]string{
			"request_id": core.GetRequestID(ctx),
		})

		if chain.CaptureTraining && o.training != nil {
			o.training.Capture(ctx, task, resp.Model, messages, resp.Content)
		}

		return &ChatResult{Response: resp}, nil
	}

	o.metrics.ObserveRequest(string(task), observability.OutcomeExhausted)
	slog.Error("all providers exhausted",
		"request_id", core.GetRequestID(ctx),
		"task", task,
		"attempts", attempts,
		"error", lastErr,
	)
	return nil, core.NewExhaustedError(attempts, lastErr)
}

// callOptions clones the caller's options with the effective temperature
// filled in, so every candidate sees the same normalized request.
func (o *Orchestrator) callOptions(opts *core.ChatOptions, temperature float64) *core.ChatOptions {
	out := core.ChatOptions{}
	if opts != nil {
		out = *opts
	}
	t := temperature
	out.Temperature = &t
	return &out
}

// CheckRateLimit reports the user's current quota without consuming it,
// for UI display.
func (o *Orchestrator) CheckRateLimit(ctx context.Context, userID string) ratelimit.Result {
	return o.limiter.Check(ctx, userID)
}

// GetUsage returns the user's recorded consumption in the active windows.
func (o *Orchestrator) GetUsage(userID string) ratelimit.Usage {
	return o.limiter.GetUsage(userID)
}

// EstimateCost prices a hypothetical call against the static table.
func (o *Orchestrator) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	return o.tracker.EstimateCost(model, inputTokens, outputTokens)
}

// DailyUsage returns the user's aggregated ledger for one day.
func (o *Orchestrator) DailyUsage(ctx context.Context, userID string, day time.Time) (*costs.DailySummary, error) {
	return o.tracker.DailyUsage(ctx, userID, day)
}

// MaintenanceReport summarizes one PurgeExpired run.
type MaintenanceReport struct {
	CacheEntriesPurged int64 `json:"cache_entries_purged"`
	CostRecordsPurged  int64 `json:"cost_records_purged"`
}

// PurgeExpired is the explicit maintenance entrypoint: it prunes expired
// durable cache rows and ledger rows past retention.
func (o *Orchestrator) PurgeExpired(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	cachePurged, err := o.cache.PurgeExpired(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to purge cache: %w", err)
	}
	report.CacheEntriesPurged = cachePurged

	costPurged, err := o.tracker.PurgeBefore(ctx, time.Now().Add(-o.costRetention))
	if err != nil {
		return report, fmt.Errorf("failed to purge cost records: %w", err)
	}
	report.CostRecordsPurged = costPurged

	return report, nil
}
