// Package providers defines the upstream LLM provider contract the
// Proxy Pipeline and LLM Classifier depend on. Concrete implementations
// (internal/providers/openai, internal/providers/anthropic) wrap the
// vendor SDKs.
package providers

import (
	"context"

	"github.com/clawrouter/claw-router/internal/types"
)

// LLMProvider is what the core needs from an upstream: a small,
// non-streaming completion call (used by the LLM Classifier's fallback
// request and by health checks) and enough transport detail for the
// Proxy Pipeline to forward a raw, largely-untouched request body
// directly over HTTP rather than round-tripping it through the SDK's
// typed request struct (which would silently drop fields the core
// doesn't model).
type LLMProvider interface {
	// GetProviderName returns the provider's catalog-facing name, e.g.
	// "openai" or "anthropic".
	GetProviderName() string

	// ChatCompletion performs a small, non-streaming completion. Used
	// by the LLM Classifier; the main forwarding path does not call
	// this method.
	ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error)

	// HealthCheck performs a minimal request to confirm the upstream is
	// reachable and authorized.
	HealthCheck(ctx context.Context) error

	// Endpoint returns the absolute URL the proxy should forward a raw
	// chat-completion request body to for the given model.
	Endpoint(model string) string

	// AuthHeader returns the HTTP header name/value pair the proxy
	// should attach to a forwarded request, given the token resolved
	// from the credential resolver.
	AuthHeader(token string) (name, value string)
}
