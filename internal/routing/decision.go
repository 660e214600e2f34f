package routing

import "github.com/clawrouter/claw-router/internal/classifier"

// Method records which stage of the classifier ultimately produced the
// tier adopted by a RoutingDecision.
type Method string

const (
	MethodFastpath Method = "fastpath"
	MethodRules    Method = "rules"
	MethodLLM      Method = "llm"
)

// RoutingDecision is the record attached to every forwarded request
// describing the classified tier, chosen model, cost estimates, and
// rationale.
type RoutingDecision struct {
	Model         string          `json:"model"`
	Tier          classifier.Tier `json:"tier"`
	Confidence    float64         `json:"confidence"`
	Method        Method          `json:"method"`
	Reasoning     string          `json:"reasoning"`
	CostEstimate  float64         `json:"costEstimate"`
	BaselineCost  float64         `json:"baselineCost"`
	Savings       float64         `json:"savings"`
	FallbackChain []string        `json:"fallbackChain"`
	Signals       []string        `json:"signals,omitempty"`
}
