// Package selector implements C6: mapping a classified tier to a
// concrete model plus a cost estimate, a baseline cost, and the savings
// that choice represents relative to the catalog's canonical expensive
// model.
package selector

import (
	"fmt"

	"github.com/clawrouter/claw-router/internal/catalog"
	"github.com/clawrouter/claw-router/internal/classifier"
)

// DefaultOutputTokenCap bounds the assumed output length when a request
// does not specify max_tokens, so cost estimates stay finite even for
// open-ended prompts.
const DefaultOutputTokenCap = 1024

// TierOutputCap further bounds the assumed output length per tier; a
// SIMPLE request is never assumed to produce a REASONING-sized response
// even if the client asks for a huge max_tokens.
var TierOutputCap = map[classifier.Tier]int{
	classifier.TierSimple:    512,
	classifier.TierMedium:    2048,
	classifier.TierComplex:   4096,
	classifier.TierReasoning: 8192,
}

// Selection is the output of Select: the chosen model plus the cost
// accounting the Router folds into a RoutingDecision.
type Selection struct {
	Model        *catalog.ModelEntry
	FallbackIDs  []string
	CostEstimate float64
	BaselineCost float64
	Savings      float64
	// Clamped reports whether the raw (baselineCost-costEstimate)/baselineCost
	// ratio was negative and got floored to zero — i.e. the chosen model
	// actually costs more than the catalog's baseline for this request.
	// Under a well-formed catalog (see Catalog.BaselineModel) this should
	// never happen; callers surface it as a routing signal rather than
	// silently reporting a false savings figure.
	Clamped bool
}

// Select picks the primary model for tier and computes cost/savings for
// a request with the given estimated input tokens and optional
// client-requested max_tokens (nil means unspecified).
func Select(cat *catalog.Catalog, tier classifier.Tier, inputTokens int, requestedMaxTokens *int) (*Selection, error) {
	primaryID, ok := cat.Primary(tier)
	if !ok {
		return nil, fmt.Errorf("selector: no primary model configured for tier %s", tier)
	}
	model, ok := cat.Lookup(primaryID)
	if !ok {
		return nil, fmt.Errorf("selector: primary model %q for tier %s not in catalog", primaryID, tier)
	}

	outputTokens := expectedOutputTokens(tier, requestedMaxTokens)
	costEstimate := estimateCost(model, inputTokens, outputTokens)

	baseline, ok := cat.BaselineModel()
	if !ok {
		return nil, fmt.Errorf("selector: catalog has no baseline model")
	}
	baselineCost := estimateCost(baseline, inputTokens, outputTokens)

	savings := 0.0
	if baselineCost > 0 {
		savings = (baselineCost - costEstimate) / baselineCost
	}
	clamped := savings < 0
	if clamped {
		savings = 0
	}
	if savings > 1 {
		savings = 1
	}

	return &Selection{
		Model:        model,
		FallbackIDs:  cat.FallbackChain(tier),
		CostEstimate: costEstimate,
		BaselineCost: baselineCost,
		Savings:      savings,
		Clamped:      clamped,
	}, nil
}

func expectedOutputTokens(tier classifier.Tier, requestedMaxTokens *int) int {
	return ExpectedOutputTokens(tier, requestedMaxTokens)
}

// ExpectedOutputTokens bounds the assumed output length for a tier and
// an optional client-requested max_tokens, exported so callers building
// a cost estimate for a specific model (rather than a tier's primary)
// can reuse the same cap logic Select applies.
func ExpectedOutputTokens(tier classifier.Tier, requestedMaxTokens *int) int {
	cap := TierOutputCap[tier]
	if cap == 0 {
		cap = DefaultOutputTokenCap
	}
	if requestedMaxTokens == nil {
		return min(DefaultOutputTokenCap, cap)
	}
	return min(*requestedMaxTokens, cap)
}

func estimateCost(model *catalog.ModelEntry, inputTokens, outputTokens int) float64 {
	return EstimateCost(model, inputTokens, outputTokens)
}

// EstimateCost computes the USD cost of a completion against model for
// the given input/output token counts.
func EstimateCost(model *catalog.ModelEntry, inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*model.InputPricePerMTok + float64(outputTokens)*model.OutputPricePerMTok) / 1_000_000
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
