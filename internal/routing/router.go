// Package routing orchestrates the classifier stages and the selector to
// produce a RoutingDecision for each incoming chat-completion request.
package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/catalog"
	"github.com/clawrouter/claw-router/internal/classifier"
	"github.com/clawrouter/claw-router/internal/selector"
	"github.com/clawrouter/claw-router/internal/types"
)

// Router orchestrates Rule Classifier → LLM Classifier → Selector and
// applies the post-classification tier overrides.
type Router struct {
	catalog  *catalog.Catalog
	rules    *classifier.RuleClassifier
	llm      *classifier.LLMClassifier
	scoring  *classifier.ScoringConfig
	logger   *logrus.Logger
}

// largeContextTokens is the estimated-token threshold above which a
// request is forced to at least COMPLEX regardless of classification.
const largeContextTokens = 100_000

// NewRouter builds a Router over an already-constructed catalog and
// classifier stages. scoring may be nil, in which case
// classifier.DefaultScoringConfig() is used.
func NewRouter(cat *catalog.Catalog, rules *classifier.RuleClassifier, llm *classifier.LLMClassifier, scoring *classifier.ScoringConfig, logger *logrus.Logger) *Router {
	if scoring == nil {
		scoring = classifier.DefaultScoringConfig()
	}
	return &Router{
		catalog: cat,
		rules:   rules,
		llm:     llm,
		scoring: scoring,
		logger:  logger,
	}
}

// Route classifies req and selects a concrete upstream model, returning
// the decision the proxy pipeline forwards the request under.
func (r *Router) Route(ctx context.Context, req *types.ChatRequest) (*RoutingDecision, error) {
	userText, systemPrompt := extractText(req)
	estimatedTokens := classifier.EstimateTokens(userText + systemPrompt)

	result := r.rules.Classify(userText, systemPrompt, estimatedTokens, r.scoring)

	var (
		tier       classifier.Tier
		confidence float64
		method     Method
		signals    []string
	)

	if result.Tier != nil {
		tier = *result.Tier
		confidence = result.Confidence
		signals = append(signals, result.Signals...)
		if result.Fastpath {
			method = MethodFastpath
		} else {
			method = MethodRules
		}
	} else {
		llmTier, llmConfidence := r.llm.Classify(ctx, userText)
		tier = llmTier
		confidence = llmConfidence
		method = MethodLLM
	}

	if estimatedTokens > largeContextTokens {
		tier = classifier.Max(tier, classifier.TierComplex)
		signals = append(signals, "forced-complex-large-context")
	}
	if containsStructuredHint(systemPrompt) {
		tier = classifier.Max(tier, classifier.TierMedium)
		signals = append(signals, "forced-medium-structured")
	}

	sel, err := selector.Select(r.catalog, tier, estimatedTokens, req.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("selecting model for tier %s: %w", tier, err)
	}
	if sel.Clamped {
		signals = append(signals, "savings-clamped-cost-exceeds-baseline")
	}

	decision := &RoutingDecision{
		Model:         sel.Model.ID,
		Tier:          tier,
		Confidence:    confidence,
		Method:        method,
		Reasoning:     buildReasoning(method, tier, signals),
		CostEstimate:  sel.CostEstimate,
		BaselineCost:  sel.BaselineCost,
		Savings:       sel.Savings,
		FallbackChain: sel.FallbackIDs,
		Signals:       signals,
	}

	r.logger.WithFields(logrus.Fields{
		"model":      decision.Model,
		"tier":       decision.Tier.String(),
		"method":     decision.Method,
		"confidence": decision.Confidence,
		"savings":    decision.Savings,
	}).Debug("routed request")

	return decision, nil
}

// RouteToModel builds a RoutingDecision for a client-specified concrete
// model id, bypassing classification entirely. Used when a request
// names a catalog model directly instead of the logical "auto" model.
func (r *Router) RouteToModel(modelID string) (*RoutingDecision, error) {
	entry, ok := r.catalog.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", modelID)
	}

	baseline, ok := r.catalog.BaselineModel()
	if !ok {
		return nil, fmt.Errorf("selecting explicit model %q: catalog has no baseline model", modelID)
	}

	outputTokens := selector.ExpectedOutputTokens(entry.Tier, nil)
	costEstimate := selector.EstimateCost(entry, 0, outputTokens)
	baselineCost := selector.EstimateCost(baseline, 0, outputTokens)
	savings := 0.0
	if baselineCost > 0 {
		savings = (baselineCost - costEstimate) / baselineCost
	}
	signals := []string{"explicit-model-request"}
	if savings < 0 {
		savings = 0
		signals = append(signals, "savings-clamped-cost-exceeds-baseline")
	}
	if savings > 1 {
		savings = 1
	}

	return &RoutingDecision{
		Model:         entry.ID,
		Tier:          entry.Tier,
		Confidence:    1.0,
		Method:        MethodRules,
		Reasoning:     "explicit model request, classification skipped",
		CostEstimate:  costEstimate,
		BaselineCost:  baselineCost,
		Savings:       savings,
		FallbackChain: r.catalog.FallbackChain(entry.Tier),
		Signals:       signals,
	}, nil
}

// Catalog exposes the model catalog the Router was built with, for
// components (the Proxy Pipeline's /v1/models and model-to-provider
// lookups) that need it read-only.
func (r *Router) Catalog() *catalog.Catalog {
	return r.catalog
}

// InvalidateCache clears the LLM Classifier's classification cache.
// Called when POST /reload signals a cache-invalidation request.
func (r *Router) InvalidateCache() {
	r.llm.InvalidateCache()
}

func buildReasoning(method Method, tier classifier.Tier, signals []string) string {
	reasoning := fmt.Sprintf("classified %s via %s", tier, method)
	if len(signals) > 0 {
		reasoning += " (" + strings.Join(signals, ", ") + ")"
	}
	return reasoning
}

// extractText concatenates user-role and system-role message contents
// per the data flow in the component design: userText drives fast-path
// and scoring, systemPrompt only feeds the agentic dimension and the
// structured-output override.
func extractText(req *types.ChatRequest) (userText, systemPrompt string) {
	var userParts, systemParts []string
	for _, msg := range req.Messages {
		text := contentText(msg.Content)
		switch msg.Role {
		case "user":
			userParts = append(userParts, text)
		case "system":
			systemParts = append(systemParts, text)
		}
	}
	return strings.Join(userParts, "\n"), strings.Join(systemParts, "\n")
}

func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []types.ContentPart:
		var parts []string
		for _, part := range v {
			if part.Type == "text" {
				parts = append(parts, part.Text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func containsStructuredHint(systemPrompt string) bool {
	lower := strings.ToLower(systemPrompt)
	return strings.Contains(lower, "json") || strings.Contains(lower, "structured")
}
