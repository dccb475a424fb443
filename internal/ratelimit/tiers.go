package ratelimit

import "cartai/internal/core"

// Subscription tier names.
const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
)

// Static per-tier defaults, used when no per-user plan override applies.
var tierDefaults = map[string]core.PlanLimits{
	TierFree: {
		MaxCallsPerMinute: 5,
		MaxCallsPerDay:    50,
		MaxTokensPerDay:   100_000,
	},
	TierBasic: {
		MaxCallsPerMinute: 15,
		MaxCallsPerDay:    500,
		MaxTokensPerDay:   1_000_000,
	},
	TierPremium: {
		MaxCallsPerMinute: 60,
		MaxCallsPerDay:    5_000,
		MaxTokensPerDay:   10_000_000,
	},
}

// TierLimits returns the static limits for a tier. Unknown tiers fall back
// to the free tier, the most conservative one.
func TierLimits(tier string) core.PlanLimits {
	if limits, ok := tierDefaults[tier]; ok {
		return limits
	}
	return tierDefaults[TierFree]
}

// Tiers lists the known tier names.
func Tiers() []string {
	return []string{TierFree, TierBasic, TierPremium}
}
