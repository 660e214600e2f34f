package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/clawrouter/claw-router/internal/providers"
	"github.com/clawrouter/claw-router/internal/routing"
	"github.com/clawrouter/claw-router/internal/security"
	"github.com/clawrouter/claw-router/internal/telemetry"
	"github.com/clawrouter/claw-router/internal/types"
)

// maxUpstreamAttempts bounds fallback chain traversal to the primary
// plus at most two fallbacks, regardless of how long the configured
// chain is, to bound request latency.
const maxUpstreamAttempts = 3

// forwardRequest drives the FORWARDING/STREAMING states of the proxy
// pipeline: it rewrites the model field on rawBody and POSTs it to each
// candidate model in turn (the selected model, then its fallback chain,
// capped at maxUpstreamAttempts) until one returns a 2xx, forwarding
// that response byte-for-byte to the client. The request body is never
// round-tripped through typed structs; only the "model" field is
// patched in place so unknown fields survive untouched.
func (s *Server) forwardRequest(w http.ResponseWriter, r *http.Request, rawBody []byte, req *types.ChatRequest, decision *routing.RoutingDecision, requestID string) {
	candidates := candidateModels(decision)

	var (
		triedModels []string
		lastStatus  int
		lastBody    []byte
	)

	for _, model := range candidates {
		provider, token, ok := s.resolveUpstream(r.Context(), model)
		if !ok {
			triedModels = append(triedModels, model)
			continue
		}

		patched, err := sjson.SetBytes(rawBody, "model", model)
		if err != nil {
			s.logger.WithError(err).Warn("failed to patch model field, skipping candidate")
			triedModels = append(triedModels, model)
			continue
		}

		resp, err := s.doUpstreamRequest(r.Context(), provider, model, patched, token)
		if err != nil {
			triedModels = append(triedModels, model)
			lastStatus = 0
			s.logger.WithError(err).WithField("model", model).Warn("upstream network error, trying next candidate")
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			s.credentials.Invalidate()
			if refreshedToken, err := s.credentials.Resolve(r.Context(), provider.GetProviderName()); err == nil {
				if retryResp, err := s.doUpstreamRequest(r.Context(), provider, model, patched, refreshedToken); err == nil {
					resp = retryResp
				}
			}
			if resp.StatusCode == http.StatusUnauthorized {
				resp.Body.Close()
				s.writeAuthMissing(w, requestID, provider.GetProviderName())
				return
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			resp.Body.Close()
			triedModels = append(triedModels, model)
			lastStatus = resp.StatusCode
			lastBody = body
			continue
		}

		s.streamSuccess(w, resp, req, decision, model, requestID)
		return
	}

	s.writeUpstreamFailure(w, requestID, triedModels, lastStatus, lastBody)
}

// candidateModels returns the ordered list of models to attempt,
// bounded to maxUpstreamAttempts total.
func candidateModels(decision *routing.RoutingDecision) []string {
	candidates := append([]string{decision.Model}, decision.FallbackChain...)
	if len(candidates) > maxUpstreamAttempts {
		candidates = candidates[:maxUpstreamAttempts]
	}
	return candidates
}

// resolveUpstream maps a model id to its provider client and a resolved
// bearer credential. ok is false if the model is unknown, no client is
// registered for its provider, or no credential could be resolved — in
// every case the caller treats this as a fallback-eligible failure.
func (s *Server) resolveUpstream(ctx context.Context, model string) (providers.LLMProvider, string, bool) {
	entry, ok := s.router.Catalog().Lookup(model)
	if !ok {
		return nil, "", false
	}
	provider, ok := s.providers[entry.Provider]
	if !ok {
		s.logger.WithFields(map[string]interface{}{"model": model, "provider": entry.Provider}).
			Debug("no provider client registered, skipping candidate")
		return nil, "", false
	}
	token, err := s.credentials.Resolve(ctx, entry.Provider)
	if err != nil {
		s.logger.WithError(err).WithField("provider", entry.Provider).Debug("no credential available, skipping candidate")
		return nil, "", false
	}
	return provider, token, true
}

func (s *Server) doUpstreamRequest(ctx context.Context, provider providers.LLMProvider, model string, body []byte, token string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.Endpoint(model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	name, value := provider.AuthHeader(token)
	httpReq.Header.Set(name, value)

	return s.httpClient.Do(httpReq)
}

// streamSuccess forwards a 2xx upstream response to the client
// byte-for-byte, announcing the routing decision via a response header
// before any body bytes are written, then fires the onRouted and
// onCompleted telemetry callbacks in the order the concurrency model
// requires.
func (s *Server) streamSuccess(w http.ResponseWriter, resp *http.Response, req *types.ChatRequest, decision *routing.RoutingDecision, actualModel, requestID string) {
	defer resp.Body.Close()

	actual := *decision
	actual.Model = actualModel

	if decisionJSON, err := json.Marshal(&actual); err == nil {
		w.Header().Set("X-ClawRouter-Decision", string(decisionJSON))
	}
	for k, values := range resp.Header {
		if k == "Content-Length" {
			continue // body length changes if the connection reframes; let Go recompute it
		}
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	s.hooks.OnRouted(requestID, &actual)

	if req.Stream {
		if err := copyStreaming(w, resp.Body); err != nil {
			// A client disconnect or request cancellation surfaces here as
			// a non-EOF read/write error; the spec's cancellation clause
			// forbids emitting a COMPLETED/usage event for a stream that
			// never finished, so report it as an error instead.
			s.hooks.OnError(requestID, fmt.Errorf("streaming response to client: %w", err))
			return
		}
		s.hooks.OnCompleted(requestID, telemetry.UsageRecord{Model: actualModel})
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(w, io.TeeReader(resp.Body, &buf)); err != nil {
		s.hooks.OnError(requestID, fmt.Errorf("copying response to client: %w", err))
		return
	}
	s.hooks.OnCompleted(requestID, telemetry.UsageRecord{
		Model:            actualModel,
		PromptTokens:     int(gjson.GetBytes(buf.Bytes(), "usage.prompt_tokens").Int()),
		CompletionTokens: int(gjson.GetBytes(buf.Bytes(), "usage.completion_tokens").Int()),
		ActualCostUSD:    decision.CostEstimate,
	})
}

// copyStreaming forwards a server-sent-event body to the client as
// chunks arrive, flushing after every write so the pipeline never
// accumulates the whole response. It returns nil only when the upstream
// body reached a clean EOF; any other read or write error (including a
// canceled request context from a client disconnect) is returned to the
// caller so completion telemetry is not fired for an unfinished stream.
func copyStreaming(w http.ResponseWriter, body io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// writeAuthMissing implements error kind 5 (AuthMissing) from the error
// handling design: after the single credential-refresh retry still comes
// back 401, the request fails for this provider's credentials alone,
// not for lack of a capable model, so it is reported distinctly from
// the generic fallback-chain exhaustion path and does not consume
// another fallback attempt.
func (s *Server) writeAuthMissing(w http.ResponseWriter, requestID, provider string) {
	err := fmt.Errorf("provider %s rejected credentials after refresh", provider)
	s.hooks.OnError(requestID, err)
	if s.security != nil {
		s.security.LogSecurityEvent(context.Background(), security.AuthMissing, err.Error(), map[string]interface{}{
			"provider":   provider,
			"request_id": requestID,
		})
	}
	s.writeErrorResponse(w, http.StatusUnauthorized, types.ErrorDetail{
		Type:     "auth_missing",
		Message:  err.Error(),
		Provider: provider,
	})
}

func (s *Server) writeUpstreamFailure(w http.ResponseWriter, requestID string, triedModels []string, lastStatus int, lastBody []byte) {
	if s.security != nil {
		s.security.LogSecurityEvent(context.Background(), security.UpstreamExhausted, "fallback chain exhausted without a successful response", map[string]interface{}{
			"tried_models": triedModels,
			"request_id":   requestID,
			"last_status":  lastStatus,
		})
	}

	if lastStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(lastStatus)
		w.Write(lastBody)
		s.hooks.OnError(requestID, fmt.Errorf("upstream returned status %d after exhausting fallback chain %v", lastStatus, triedModels))
		return
	}

	err := fmt.Errorf("upstream unreachable after trying %v", triedModels)
	s.hooks.OnError(requestID, err)
	s.writeErrorResponse(w, http.StatusBadGateway, types.ErrorDetail{
		Type:        "upstream_unreachable",
		Message:     err.Error(),
		TriedModels: triedModels,
	})
}
