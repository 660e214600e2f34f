// Package telemetry defines the callback surface the Proxy Pipeline
// fires as a request moves through its state machine. The default
// implementation logs structurally and updates the stats counters;
// tests can substitute a recording Hooks to assert ordering (onRouted
// before the first response byte, a terminal event exactly once per
// request).
package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/routing"
	"github.com/clawrouter/claw-router/internal/stats"
)

// UsageRecord is the completion-time accounting the pipeline reports
// once the final byte of a response has been forwarded: token counts
// parsed from the upstream response where available, and the cost that
// implies.
type UsageRecord struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	ActualCostUSD    float64
}

// Hooks is the telemetry capability the Proxy Pipeline depends on.
// OnRouted fires once classification and selection complete, before the
// response body starts streaming to the client. OnCompleted fires after
// the last byte of a successful response. OnError fires for any request
// that does not reach COMPLETED.
type Hooks interface {
	OnRouted(requestID string, decision *routing.RoutingDecision)
	OnCompleted(requestID string, usage UsageRecord)
	OnError(requestID string, err error)
}

// LoggingHooks is the default Hooks implementation: structured logging
// via logrus plus counter updates on the shared stats.Counters.
type LoggingHooks struct {
	logger  *logrus.Logger
	counters *stats.Counters
}

// NewLoggingHooks constructs a LoggingHooks backed by counters.
func NewLoggingHooks(logger *logrus.Logger, counters *stats.Counters) *LoggingHooks {
	return &LoggingHooks{logger: logger, counters: counters}
}

func (h *LoggingHooks) OnRouted(requestID string, decision *routing.RoutingDecision) {
	h.counters.RecordRouted(decision.Tier, decision.Model, decision.CostEstimate, decision.BaselineCost)
	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"model":      decision.Model,
		"tier":       decision.Tier.String(),
		"method":     decision.Method,
		"confidence": decision.Confidence,
		"savings":    decision.Savings,
	}).Info("request routed")
}

func (h *LoggingHooks) OnCompleted(requestID string, usage UsageRecord) {
	h.logger.WithFields(logrus.Fields{
		"request_id":        requestID,
		"model":             usage.Model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"actual_cost_usd":   usage.ActualCostUSD,
	}).Info("request completed")
}

func (h *LoggingHooks) OnError(requestID string, err error) {
	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
	}).Warn("request failed")
}

var _ Hooks = (*LoggingHooks)(nil)
