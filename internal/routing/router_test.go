package routing

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawrouter/claw-router/internal/catalog"
	"github.com/clawrouter/claw-router/internal/classifier"
	"github.com/clawrouter/claw-router/internal/types"
)

type stubCompleter struct {
	response string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cat := catalog.Default()
	cache := classifier.NewCache()
	llm := classifier.NewLLMClassifier(cache, &stubCompleter{response: "MEDIUM"}, logger)
	return NewRouter(cat, classifier.NewRuleClassifier(), llm, nil, logger)
}

func chatRequest(userText string) *types.ChatRequest {
	return &types.ChatRequest{
		Model:    "auto",
		Messages: []types.Message{{Role: "user", Content: userText}},
	}
}

func TestRoute_SimpleGreetingUsesFastpath(t *testing.T) {
	router := newTestRouter(t)

	decision, err := router.Route(context.Background(), chatRequest("Hello"))
	require.NoError(t, err)

	assert.Equal(t, classifier.TierSimple, decision.Tier)
	assert.Equal(t, MethodFastpath, decision.Method)
	assert.GreaterOrEqual(t, decision.Savings, 0.0)
}

func TestRoute_ReasoningOverrideSelectsReasoningModel(t *testing.T) {
	router := newTestRouter(t)

	req := chatRequest("Prove that sqrt(2) is irrational, step by step.")
	decision, err := router.Route(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, classifier.TierReasoning, decision.Tier)
	assert.GreaterOrEqual(t, decision.Confidence, 0.85)

	cat := catalog.Default()
	model, ok := cat.Lookup(decision.Model)
	require.True(t, ok)
	assert.Equal(t, classifier.TierReasoning, model.Tier)
}

func TestRoute_LargeContextForcesComplex(t *testing.T) {
	router := newTestRouter(t)

	// 400,004 bytes estimate to 100,001 tokens, just over the 100,000 threshold.
	req := chatRequest(strings.Repeat("a", 400_004))
	decision, err := router.Route(context.Background(), req)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, int(decision.Tier), int(classifier.TierComplex))
	assert.Contains(t, decision.Signals, "forced-complex-large-context")
}

func TestRoute_StructuredSystemPromptForcesMedium(t *testing.T) {
	router := newTestRouter(t)

	req := &types.ChatRequest{
		Model: "auto",
		Messages: []types.Message{
			{Role: "system", Content: "Respond in JSON."},
			{Role: "user", Content: "Summarize this article about photosynthesis in three bullet points"},
		},
	}

	decision, err := router.Route(context.Background(), req)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, int(decision.Tier), int(classifier.TierMedium))
	assert.Contains(t, decision.Signals, "forced-medium-structured")
}

func TestRoute_ComplexArchitectureFastpath(t *testing.T) {
	router := newTestRouter(t)

	req := chatRequest("Design a microservice architecture for a trading platform")
	decision, err := router.Route(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, classifier.TierComplex, decision.Tier)
	assert.Equal(t, MethodFastpath, decision.Method)
}

func TestRoute_AmbiguousRequestFallsBackToLLMClassifier(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cat := catalog.Default()
	cache := classifier.NewCache()
	llm := classifier.NewLLMClassifier(cache, &stubCompleter{response: "COMPLEX"}, logger)
	router := NewRouter(cat, classifier.NewRuleClassifier(), llm, nil, logger)

	cfg := classifier.DefaultScoringConfig()
	cfg.ConfidenceThreshold = 1.1 // unreachable, forces every rule result to ambiguous
	router.scoring = cfg

	decision, err := router.Route(context.Background(), chatRequest("A moderately interesting middling request about several topics"))
	require.NoError(t, err)
	assert.Equal(t, MethodLLM, decision.Method)
	assert.Equal(t, classifier.TierComplex, decision.Tier)
}

func TestRoute_ModelBelongsToDecisionTier(t *testing.T) {
	router := newTestRouter(t)
	cat := catalog.Default()

	inputs := []string{"Hi", "write a function to reverse a string", "Design a microservice architecture for a trading platform", "Prove the chain of thought derivation formally"}
	for _, text := range inputs {
		decision, err := router.Route(context.Background(), chatRequest(text))
		require.NoError(t, err)

		model, ok := cat.Lookup(decision.Model)
		require.True(t, ok)
		assert.Equal(t, decision.Tier, model.Tier)
	}
}
