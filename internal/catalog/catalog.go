// Package catalog holds the static model table (C1): the process-wide,
// read-only mapping from model id to tier, pricing, and provider that the
// selector and LLM classifier consult. The table's source of truth (a
// remote pricing feed, a vendored JSON file, etc.) is out of scope; this
// package only owns the in-memory shape and default bootstrap values.
package catalog

import (
	"fmt"

	"github.com/clawrouter/claw-router/internal/classifier"
)

// ModelEntry is an immutable catalog record. Once constructed at startup
// it is never mutated; callers must treat the returned pointers as
// read-only.
type ModelEntry struct {
	ID                 string
	Provider           string
	Tier               classifier.Tier
	InputPricePerMTok   float64
	OutputPricePerMTok  float64
	ContextWindow      int
	SupportsStreaming  bool
}

// Catalog is the immutable, process-wide model table plus the per-tier
// primary/fallback chain configuration the Selector reads.
type Catalog struct {
	models   map[string]*ModelEntry
	byTier   map[classifier.Tier][]*ModelEntry
	primary  map[classifier.Tier]string
	fallback map[classifier.Tier][]string
}

// New builds a Catalog from a flat model list and a per-tier routing
// table (primary model id plus ordered fallback ids). It validates that
// every referenced model id exists and belongs to the tier it is listed
// under.
func New(models []ModelEntry, primary map[classifier.Tier]string, fallback map[classifier.Tier][]string) (*Catalog, error) {
	c := &Catalog{
		models:   make(map[string]*ModelEntry, len(models)),
		byTier:   make(map[classifier.Tier][]*ModelEntry),
		primary:  make(map[classifier.Tier]string, len(primary)),
		fallback: make(map[classifier.Tier][]string, len(fallback)),
	}

	for i := range models {
		m := models[i]
		if _, exists := c.models[m.ID]; exists {
			return nil, fmt.Errorf("catalog: duplicate model id %q", m.ID)
		}
		c.models[m.ID] = &m
		c.byTier[m.Tier] = append(c.byTier[m.Tier], &m)
	}

	for tier, id := range primary {
		entry, ok := c.models[id]
		if !ok {
			return nil, fmt.Errorf("catalog: primary model %q for tier %s not found", id, tier)
		}
		if entry.Tier != tier {
			return nil, fmt.Errorf("catalog: primary model %q belongs to tier %s, not %s", id, entry.Tier, tier)
		}
		c.primary[tier] = id
	}

	for tier, ids := range fallback {
		for _, id := range ids {
			entry, ok := c.models[id]
			if !ok {
				return nil, fmt.Errorf("catalog: fallback model %q for tier %s not found", id, tier)
			}
			if entry.Tier != tier {
				return nil, fmt.Errorf("catalog: fallback model %q belongs to tier %s, not %s", id, entry.Tier, tier)
			}
		}
		c.fallback[tier] = append([]string(nil), ids...)
	}

	return c, nil
}

// Lookup returns the model entry for an id, or false if unknown.
func (c *Catalog) Lookup(id string) (*ModelEntry, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Primary returns the configured primary model id for a tier.
func (c *Catalog) Primary(tier classifier.Tier) (string, bool) {
	id, ok := c.primary[tier]
	return id, ok
}

// FallbackChain returns the ordered fallback model ids configured for a
// tier, excluding the primary. Callers must not mutate the returned
// slice.
func (c *Catalog) FallbackChain(tier classifier.Tier) []string {
	return c.fallback[tier]
}

// ModelsForTier returns every catalog entry belonging to a tier.
func (c *Catalog) ModelsForTier(tier classifier.Tier) []*ModelEntry {
	return c.byTier[tier]
}

// All returns every model entry in the catalog, in no particular order.
func (c *Catalog) All() []*ModelEntry {
	out := make([]*ModelEntry, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	return out
}

// BaselineModel returns the canonical "expensive" reference model used as
// the denominator of the savings calculation: the catalog entry with the
// single highest combined input+output price. A real pricing table has
// one model that is the most expensive on both axes (its input price is
// the catalog max and its output price is the catalog max), so pricing
// any other model's request against it bounds costEstimate by
// baselineCost for any input/output token split — that's what keeps the
// selector's savings invariant from going negative. If the configured
// table doesn't have such a dominating model, the bound only holds for
// token mixes skewed toward whichever axis the ranking picked.
func (c *Catalog) BaselineModel() (*ModelEntry, bool) {
	var baseline *ModelEntry
	for _, m := range c.models {
		if baseline == nil || m.InputPricePerMTok+m.OutputPricePerMTok > baseline.InputPricePerMTok+baseline.OutputPricePerMTok {
			baseline = m
		}
	}
	if baseline == nil {
		return nil, false
	}
	return baseline, true
}

// Default returns the catalog bundled with the proxy: a small table of
// real OpenAI, Anthropic, and Gemini models spanning all four tiers,
// intended as a starting point that a deployment's config overrides.
func Default() *Catalog {
	models := []ModelEntry{
		{ID: "gemini-2.5-flash", Provider: "google", Tier: classifier.TierSimple, InputPricePerMTok: 0.15, OutputPricePerMTok: 0.60, ContextWindow: 1_000_000, SupportsStreaming: true},
		{ID: "gpt-4o-mini", Provider: "openai", Tier: classifier.TierSimple, InputPricePerMTok: 0.15, OutputPricePerMTok: 0.60, ContextWindow: 128_000, SupportsStreaming: true},
		{ID: "claude-3-5-haiku-latest", Provider: "anthropic", Tier: classifier.TierMedium, InputPricePerMTok: 0.80, OutputPricePerMTok: 4.00, ContextWindow: 200_000, SupportsStreaming: true},
		{ID: "gpt-4.1-mini", Provider: "openai", Tier: classifier.TierMedium, InputPricePerMTok: 0.40, OutputPricePerMTok: 1.60, ContextWindow: 128_000, SupportsStreaming: true},
		{ID: "claude-sonnet-4-5", Provider: "anthropic", Tier: classifier.TierComplex, InputPricePerMTok: 3.00, OutputPricePerMTok: 15.00, ContextWindow: 200_000, SupportsStreaming: true},
		{ID: "gpt-4.1", Provider: "openai", Tier: classifier.TierComplex, InputPricePerMTok: 2.00, OutputPricePerMTok: 8.00, ContextWindow: 128_000, SupportsStreaming: true},
		{ID: "claude-opus-4", Provider: "anthropic", Tier: classifier.TierReasoning, InputPricePerMTok: 15.00, OutputPricePerMTok: 75.00, ContextWindow: 200_000, SupportsStreaming: true},
		{ID: "o3", Provider: "openai", Tier: classifier.TierReasoning, InputPricePerMTok: 10.00, OutputPricePerMTok: 40.00, ContextWindow: 200_000, SupportsStreaming: true},
	}

	primary := map[classifier.Tier]string{
		classifier.TierSimple:    "gemini-2.5-flash",
		classifier.TierMedium:    "claude-3-5-haiku-latest",
		classifier.TierComplex:   "claude-sonnet-4-5",
		classifier.TierReasoning: "claude-opus-4",
	}
	fallback := map[classifier.Tier][]string{
		classifier.TierSimple:    {"gpt-4o-mini"},
		classifier.TierMedium:    {"gpt-4.1-mini"},
		classifier.TierComplex:   {"gpt-4.1"},
		classifier.TierReasoning: {"o3"},
	}

	c, err := New(models, primary, fallback)
	if err != nil {
		// The default table is a compile-time constant; a validation
		// failure here is a bug in this package, not a runtime condition.
		panic(fmt.Sprintf("catalog: invalid default table: %v", err))
	}
	return c
}
