package classifier

// ScoringConfig is the immutable, process-wide bundle of tunable
// parameters the Rule Classifier and LLM Classifier read. It is built
// once at startup (DefaultScoringConfig, optionally merged with a
// deployment's override) and never mutated afterward; callers must treat
// a *ScoringConfig as read-only and share it freely across goroutines.
type ScoringConfig struct {
	// DimensionWeights maps each of the 15 named scoring dimensions to
	// its real-valued weight in the Stage B weighted sum.
	DimensionWeights map[string]float64

	// Keyword lists consulted by Stage B's dimension rules.
	CodeKeywords       []string
	ReasoningKeywords  []string
	TechnicalKeywords  []string
	CreativeKeywords   []string
	SimpleKeywords     []string
	ImperativeVerbs    []string
	ConstraintKeywords []string
	OutputFormatWords  []string
	ReferenceWords     []string
	NegationWords      []string
	DomainWords        []string
	AgenticKeywords    []string

	// TokenThresholds gates the tokenCount dimension: below Simple is a
	// negative signal, above Complex is a positive one.
	TokenThresholds struct {
		Simple  int
		Complex int
	}

	// TierBoundaries are the three monotonically increasing score
	// thresholds Stage D maps onto SIMPLE/MEDIUM/COMPLEX/REASONING.
	TierBoundaries [3]float64

	// ConfidenceSteepness is the sigmoid slope used to turn a boundary
	// distance into a calibrated confidence in [0.5, 1.0].
	ConfidenceSteepness float64

	// ConfidenceThreshold is the calibrated-confidence floor below which
	// the Rule Classifier reports tier=nil so the Router escalates to
	// the LLM Classifier.
	ConfidenceThreshold float64
}

// DefaultScoringConfig returns the weights and keyword lists this proxy
// ships with. They are deliberately ordinary defaults, not a tuned model;
// deployments are expected to override them via configuration.
func DefaultScoringConfig() *ScoringConfig {
	cfg := &ScoringConfig{
		DimensionWeights: map[string]float64{
			"tokenCount":          1.0,
			"codePresence":        1.2,
			"reasoningMarkers":    1.5,
			"technicalTerms":      1.0,
			"creativeMarkers":     0.6,
			"simpleIndicators":    1.3,
			"multiStepPatterns":   0.8,
			"questionComplexity":  0.5,
			"imperativeVerbs":     0.7,
			"constraintCount":     0.7,
			"outputFormat":        0.6,
			"referenceComplexity": 0.5,
			"negationComplexity":  0.4,
			"domainSpecificity":   0.9,
			"agenticTask":         1.1,
		},
		CodeKeywords: []string{
			"function", "class", "variable", "loop", "array", "api",
			"endpoint", "database", "query", "algorithm", "compile",
			"debug", "exception", "regex", "interface", "struct",
		},
		ReasoningKeywords: []string{
			"prove", "proof", "theorem", "derive", "deduce", "formally verify",
			"chain of thought", "mathematical proof", "lemma", "induction",
		},
		TechnicalKeywords: []string{
			"architecture", "protocol", "latency", "throughput", "concurrency",
			"distributed", "kubernetes", "encryption", "schema", "pipeline",
		},
		CreativeKeywords: []string{
			"story", "poem", "creative", "imagine", "fictional", "narrative",
		},
		SimpleKeywords: []string{
			"hi", "hello", "thanks", "thank you", "ok", "okay",
		},
		ImperativeVerbs: []string{
			"write", "build", "create", "implement", "generate", "draft",
		},
		ConstraintKeywords: []string{
			"must", "should", "require", "constraint", "limit", "ensure",
		},
		OutputFormatWords: []string{
			"json", "yaml", "table", "bullet", "markdown", "csv",
		},
		ReferenceWords: []string{
			"above", "previous", "earlier", "aforementioned", "that document",
		},
		NegationWords: []string{
			"not", "n't", "never", "without", "except",
		},
		DomainWords: []string{
			"clinical", "regulatory", "actuarial", "cryptographic", "legal",
			"taxonomy", "compliance",
		},
		AgenticKeywords: []string{
			"then", "after that", "step", "first,", "next,", "finally,",
			"until", "loop until", "repeat",
		},
		TierBoundaries:      [3]float64{1.0, 2.5, 4.0},
		ConfidenceSteepness: 1.5,
		ConfidenceThreshold: 0.55,
	}
	cfg.TokenThresholds.Simple = 20
	cfg.TokenThresholds.Complex = 2000
	return cfg
}

// Merge returns a new ScoringConfig with the non-zero DimensionWeights
// (merged key by key), TierBoundaries, ConfidenceSteepness,
// ConfidenceThreshold and TokenThresholds of override applied on top of
// the receiver, leaving the receiver untouched. Keyword lists are not
// merged: the result always carries the receiver's lists. Used to apply a
// deployment's partial `routingConfig` onto the shipped defaults without
// forcing the deployment to restate every field.
func (c *ScoringConfig) Merge(override *ScoringConfig) *ScoringConfig {
	merged := *c
	if override == nil {
		return &merged
	}
	if len(override.DimensionWeights) > 0 {
		weights := make(map[string]float64, len(c.DimensionWeights))
		for k, v := range c.DimensionWeights {
			weights[k] = v
		}
		for k, v := range override.DimensionWeights {
			weights[k] = v
		}
		merged.DimensionWeights = weights
	}
	if override.TierBoundaries != [3]float64{} {
		merged.TierBoundaries = override.TierBoundaries
	}
	if override.ConfidenceSteepness != 0 {
		merged.ConfidenceSteepness = override.ConfidenceSteepness
	}
	if override.ConfidenceThreshold != 0 {
		merged.ConfidenceThreshold = override.ConfidenceThreshold
	}
	if override.TokenThresholds.Simple != 0 {
		merged.TokenThresholds.Simple = override.TokenThresholds.Simple
	}
	if override.TokenThresholds.Complex != 0 {
		merged.TokenThresholds.Complex = override.TokenThresholds.Complex
	}
	return &merged
}
