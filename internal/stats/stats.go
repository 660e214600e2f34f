// Package stats holds the proxy's since-process-start counters backing
// GET /stats: request counts by tier and by model, and cumulative
// estimated savings. Updates are atomic; cross-counter consistency is
// not required, per the concurrency model's "approximate is acceptable"
// guarantee.
package stats

import (
	"sync"

	"github.com/clawrouter/claw-router/internal/classifier"
)

// Snapshot is the point-in-time view of the counters, shaped for direct
// JSON serialization by GET /stats.
type Snapshot struct {
	ByTier          map[string]int64 `json:"byTier"`
	ByModel         map[string]int64 `json:"byModel"`
	TotalSavingsUSD float64          `json:"totalSavingsUSD"`
}

// Counters accumulates routing outcomes across all requests served since
// the process started. The zero value is not usable; use New.
type Counters struct {
	mu              sync.Mutex
	byTier          map[classifier.Tier]int64
	byModel         map[string]int64
	totalCostUSD    float64
	baselineCostUSD float64
}

// New constructs an empty Counters.
func New() *Counters {
	return &Counters{
		byTier:  make(map[classifier.Tier]int64),
		byModel: make(map[string]int64),
	}
}

// RecordRouted increments the per-tier and per-model counters and
// accumulates cost/savings for a single routed request. Called once per
// request from onRouted, which fires only after an upstream has answered
// with a 2xx status; requests whose forwarding fails are not counted.
func (c *Counters) RecordRouted(tier classifier.Tier, model string, costEstimate, baselineCost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byTier[tier]++
	c.byModel[model]++
	c.totalCostUSD += costEstimate
	c.baselineCostUSD += baselineCost
}

// Snapshot returns the current counter values. totalSavingsUSD is
// derived as baseline minus actual, accumulated cost, not an average of
// per-request percentages, so it stays a meaningful dollar figure as the
// mix of requests shifts over time.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	byTier := make(map[string]int64, len(c.byTier))
	for tier, count := range c.byTier {
		byTier[tier.String()] = count
	}
	byModel := make(map[string]int64, len(c.byModel))
	for model, count := range c.byModel {
		byModel[model] = count
	}

	savings := c.baselineCostUSD - c.totalCostUSD
	if savings < 0 {
		savings = 0
	}

	return Snapshot{
		ByTier:          byTier,
		ByModel:         byModel,
		TotalSavingsUSD: savings,
	}
}
