package classifier

import (
	"math"
	"regexp"
	"strings"
)

// ScoringResult is the outcome of a Rule Classifier pass: either a
// fast-path hit or a fully scored and calibrated decision. Tier is nil
// when calibrated confidence falls below the configured threshold, which
// signals the Router to escalate to the LLM Classifier.
type ScoringResult struct {
	Score        float64
	Tier         *Tier
	Confidence   float64
	Signals      []string
	AgenticScore float64
	// Fastpath is true when Stage A short-circuited the scoring stages;
	// the Router reports method="fastpath" instead of "rules" in that case.
	Fastpath bool
}

// fast-path pattern groups, tested in this order: the first group whose
// pattern matches the lowercased, trimmed user text wins.
var (
	simplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(hi|hello|hey|hola|bonjour|ciao|olá|こんにちは|你好)\b`),
		regexp.MustCompile(`^(thanks|thank you|ok|okay|cool|got it|sounds good)\b`),
		regexp.MustCompile(`^(what is|who is|what's|where is|when is)\b`),
		regexp.MustCompile(`are you (there|there\?|ok|okay|available)`),
	}
	reasoningPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bprove\b`),
		regexp.MustCompile(`\btheorem\b`),
		regexp.MustCompile(`\bderive\b`),
		regexp.MustCompile(`formally verify`),
		regexp.MustCompile(`chain of thought`),
		regexp.MustCompile(`mathematical proof`),
	}
	complexPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\barchitect\b`),
		regexp.MustCompile(`design system`),
		regexp.MustCompile(`microservice`),
		regexp.MustCompile(`distributed`),
		regexp.MustCompile(`scalab(le|ility)`),
		regexp.MustCompile(`infrastructure`),
		regexp.MustCompile(`\boptimi[sz]e\b`),
		regexp.MustCompile(`\brefactor\b`),
		regexp.MustCompile(`\bmigrate\b`),
		regexp.MustCompile(`\boverhaul\b`),
	}
	mediumPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(write|build|create|implement)\s+(a|the|an)\s+(function|endpoint|class|script|method)\b`),
	}

	multiStepPattern = regexp.MustCompile(`first.*then|step\s*\d+|\b\d+\.\s`)
)

// RuleClassifier implements C4: a fast-path regex match followed by a
// weighted multi-dimension scorer, a reasoning override, and a
// boundary-mapped confidence calibration. It holds no mutable state and
// is safe for concurrent use.
type RuleClassifier struct{}

// NewRuleClassifier constructs a RuleClassifier. There is nothing to
// configure at construction time; all tunables live in ScoringConfig and
// are passed per-call.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify runs the four classification stages described in the
// component design over userText and systemPrompt, using cfg's weights,
// keyword lists, and calibration parameters.
func (rc *RuleClassifier) Classify(userText, systemPrompt string, estimatedTokens int, cfg *ScoringConfig) ScoringResult {
	trimmed := strings.ToLower(strings.TrimSpace(userText))

	if tier, conf := matchFastPath(trimmed); tier != nil {
		return ScoringResult{
			Tier:       tier,
			Confidence: conf,
			Signals:    []string{"quick-match: " + tier.String()},
			Fastpath:   true,
		}
	}

	score, agenticScore, signals := scoreDimensions(trimmed, systemPrompt, estimatedTokens, cfg)

	// Stage C: reasoning override.
	if countDistinctMatches(trimmed, cfg.ReasoningKeywords) >= 2 {
		tier := TierReasoning
		_, distance := SelectTier(score, cfg.TierBoundaries)
		confidence := calibrateConfidence(distance, cfg.ConfidenceSteepness)
		if confidence < 0.85 {
			confidence = 0.85
		}
		signals = append(signals, "reasoning-override")
		return ScoringResult{
			Score:        score,
			Tier:         &tier,
			Confidence:   confidence,
			Signals:      signals,
			AgenticScore: agenticScore,
		}
	}

	// Stage D: boundary mapping and confidence calibration.
	tier, distance := SelectTier(score, cfg.TierBoundaries)
	confidence := calibrateConfidence(distance, cfg.ConfidenceSteepness)

	if confidence < cfg.ConfidenceThreshold {
		return ScoringResult{
			Score:        score,
			Tier:         nil,
			Confidence:   confidence,
			Signals:      signals,
			AgenticScore: agenticScore,
		}
	}

	return ScoringResult{
		Score:        score,
		Tier:         &tier,
		Confidence:   confidence,
		Signals:      signals,
		AgenticScore: agenticScore,
	}
}

func matchFastPath(trimmed string) (*Tier, float64) {
	if len(trimmed) <= 20 {
		t := TierSimple
		return &t, 0.95
	}
	for _, p := range simplePatterns {
		if p.MatchString(trimmed) {
			t := TierSimple
			return &t, 0.95
		}
	}
	for _, p := range reasoningPatterns {
		if p.MatchString(trimmed) {
			t := TierReasoning
			return &t, 0.90
		}
	}
	for _, p := range complexPatterns {
		if p.MatchString(trimmed) {
			t := TierComplex
			return &t, 0.85
		}
	}
	for _, p := range mediumPatterns {
		if p.MatchString(trimmed) {
			t := TierMedium
			return &t, 0.80
		}
	}
	return nil, 0
}

func calibrateConfidence(distance, steepness float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / (1.0 + math.Exp(-steepness*distance))
}

func scoreDimensions(userText, systemPrompt string, estimatedTokens int, cfg *ScoringConfig) (score float64, agenticScore float64, signals []string) {
	dims := map[string]float64{}

	// tokenCount
	switch {
	case estimatedTokens < cfg.TokenThresholds.Simple:
		dims["tokenCount"] = -1.0
	case estimatedTokens > cfg.TokenThresholds.Complex:
		dims["tokenCount"] = 1.0
	default:
		dims["tokenCount"] = 0
	}

	dims["codePresence"] = tieredScore(countMatches(userText, cfg.CodeKeywords), 2, 1.0, 1, 0.5)
	dims["reasoningMarkers"] = tieredScore(countMatches(userText, cfg.ReasoningKeywords), 2, 1.0, 1, 0.7)
	dims["technicalTerms"] = tieredScore(countMatches(userText, cfg.TechnicalKeywords), 4, 1.0, 2, 0.5)
	dims["creativeMarkers"] = tieredScore(countMatches(userText, cfg.CreativeKeywords), 2, 0.7, 1, 0.5)

	if countMatches(userText, cfg.SimpleKeywords) >= 1 {
		dims["simpleIndicators"] = -1.0
	}

	if multiStepPattern.MatchString(userText) {
		dims["multiStepPatterns"] = 0.5
	}

	if strings.Count(userText, "?") > 3 {
		dims["questionComplexity"] = 0.5
	}

	dims["imperativeVerbs"] = tieredScore(countMatches(userText, cfg.ImperativeVerbs), 2, 0.5, 1, 0.3)
	dims["constraintCount"] = tieredScore(countMatches(userText, cfg.ConstraintKeywords), 3, 0.7, 1, 0.3)
	dims["outputFormat"] = tieredScore(countMatches(userText, cfg.OutputFormatWords), 2, 0.7, 1, 0.4)
	dims["referenceComplexity"] = tieredScore(countMatches(userText, cfg.ReferenceWords), 2, 0.5, 1, 0.3)
	dims["negationComplexity"] = tieredScore(countMatches(userText, cfg.NegationWords), 3, 0.5, 2, 0.3)
	dims["domainSpecificity"] = tieredScore(countMatches(userText, cfg.DomainWords), 2, 0.8, 1, 0.5)

	agenticCount := countMatches(userText+" "+systemPrompt, cfg.AgenticKeywords)
	switch {
	case agenticCount >= 4:
		dims["agenticTask"] = 1.0
	case agenticCount >= 3:
		dims["agenticTask"] = 0.6
	case agenticCount >= 1:
		dims["agenticTask"] = 0.2
	default:
		dims["agenticTask"] = 0
	}
	agenticScore = dims["agenticTask"]

	for name, v := range dims {
		if v == 0 {
			continue
		}
		w := cfg.DimensionWeights[name]
		score += v * w
		signals = append(signals, name)
	}

	return score, agenticScore, signals
}

// tieredScore implements the common "N-or-more / M-or-more / else" rule
// shape shared by most Stage B dimensions.
func tieredScore(count int, hiThreshold int, hiValue float64, loThreshold int, loValue float64) float64 {
	switch {
	case count >= hiThreshold:
		return hiValue
	case count >= loThreshold:
		return loValue
	default:
		return 0
	}
}

func countMatches(text string, keywords []string) int {
	n := 0
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

func countDistinctMatches(text string, keywords []string) int {
	return countMatches(text, keywords)
}
