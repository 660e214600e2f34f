// Package server implements the Proxy Pipeline (C8): the HTTP surface
// that accepts OpenAI-compatible chat-completion requests, invokes the
// Router, forwards the request to the selected upstream with fallback,
// streams the response back, and emits telemetry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/credentials"
	"github.com/clawrouter/claw-router/internal/middleware"
	"github.com/clawrouter/claw-router/internal/providers"
	"github.com/clawrouter/claw-router/internal/routing"
	"github.com/clawrouter/claw-router/internal/security"
	"github.com/clawrouter/claw-router/internal/stats"
	"github.com/clawrouter/claw-router/internal/telemetry"
	"github.com/clawrouter/claw-router/internal/types"
)

// Config holds the server's own startup configuration, independent of
// the top-level internal/config.Config so this package stays free of an
// import cycle back to it.
type Config struct {
	Port           int
	BindAddress    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	WalletAddress  string
	Security       *middleware.SecurityMiddlewareConfig
}

// Server is the Proxy Pipeline: an HTTP server wired to a Router, a
// provider registry, a credential resolver, telemetry hooks, and the
// stats counters GET /stats reports.
type Server struct {
	router      *routing.Router
	providers   map[string]providers.LLMProvider
	credentials credentials.Store
	hooks       telemetry.Hooks
	counters    *stats.Counters
	config      *Config
	logger      *logrus.Logger

	httpServer *http.Server
	httpClient *http.Client
	security   *middleware.SecurityMiddleware
	startedAt  time.Time
}

// NewServer wires the Proxy Pipeline's dependencies together.
// providerRegistry maps catalog provider names ("openai", "anthropic")
// to the client that serves them; a provider with no registered client
// is treated as fallback-eligible rather than a hard failure.
func NewServer(
	router *routing.Router,
	providerRegistry map[string]providers.LLMProvider,
	credStore credentials.Store,
	hooks telemetry.Hooks,
	counters *stats.Counters,
	config *Config,
	logger *logrus.Logger,
) (*Server, error) {
	s := &Server{
		router:      router,
		providers:   providerRegistry,
		credentials: credStore,
		hooks:       hooks,
		counters:    counters,
		config:      config,
		logger:      logger,
		httpClient:  &http.Client{}, // no core-enforced timeout on the main upstream call, per the concurrency model
	}

	if config.Security != nil {
		security, err := middleware.NewSecurityMiddleware(config.Security, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize security middleware: %w", err)
		}
		s.security = security
	}

	return s, nil
}

// Start begins serving and blocks until the listener errors or Stop is
// called.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port),
		Handler:        s.routes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithFields(logrus.Fields{
		"address": s.httpServer.Addr,
	}).Info("claw-router listening")

	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully, draining in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("claw-router shutting down")
	if s.security != nil {
		s.security.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	if s.security != nil {
		r.Use(s.security.Handler())
	}
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/models", s.handleModels).Methods(http.MethodGet)
	r.HandleFunc("/v1/chat/completions", s.handleChatCompletions).Methods(http.MethodPost)
	reload := r.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	if s.security != nil {
		reload.Handler(s.security.RequirePermission(security.PermissionRouteAdmin)(http.HandlerFunc(s.handleReload)))
	}

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request handled")
	})
}

// handleHealth reports liveness, the wallet address surfaced for
// payment attribution, and process uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"wallet":        s.config.WalletAddress,
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// handleStats reports the aggregate routing counters since process
// start.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

// handleModels lists every catalog model id plus the synthetic "auto"
// logical model, in OpenAI's models-list shape.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	entries := s.router.Catalog().All()
	data := make([]types.ModelInfo, 0, len(entries)+1)
	data = append(data, types.ModelInfo{ID: "auto", Object: "model", OwnedBy: "claw-router"})
	for _, entry := range entries {
		data = append(data, types.ModelInfo{ID: entry.ID, Object: "model", OwnedBy: entry.Provider})
	}

	writeJSON(w, http.StatusOK, types.ModelsResponse{Object: "list", Data: data})
}

// handleReload clears the classification cache and forces the
// credential resolver to re-read its sources on the next request.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.router.InvalidateCache()
	s.credentials.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// handleChatCompletions is the RECEIVED → CLASSIFIED → FORWARDING →
// STREAMING → COMPLETED/FAILED state machine for a single request.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	requestID := fmt.Sprintf("req_%d", time.Now().UnixNano())

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrorDetail{Type: "invalid_request", Message: "failed to read request body"})
		return
	}

	var req types.ChatRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrorDetail{Type: "invalid_request", Message: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if len(req.Messages) == 0 {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrorDetail{Type: "invalid_request", Message: "messages must not be empty"})
		return
	}

	decision, err := s.resolveDecision(r.Context(), &req)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, types.ErrorDetail{Type: "invalid_request", Message: err.Error()})
		return
	}

	if s.security != nil {
		s.security.LogSecurityEvent(r.Context(), security.RequestRouted, fmt.Sprintf("routed to %s (tier %s)", decision.Model, decision.Tier), map[string]interface{}{
			"model":         decision.Model,
			"tier":          decision.Tier,
			"cost_estimate": decision.CostEstimate,
			"request_id":    requestID,
		})
	}

	s.forwardRequest(w, r, rawBody, &req, decision, requestID)
}

// resolveDecision routes the request through the classifier pipeline
// when model is "auto", or builds a decision directly from a
// client-named concrete catalog model, skipping classification
// entirely, per the requirement that model MUST be "auto" or a
// concrete catalog id.
func (s *Server) resolveDecision(ctx context.Context, req *types.ChatRequest) (*routing.RoutingDecision, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" || model == "auto" {
		return s.router.Route(ctx, req)
	}

	entry, ok := s.router.Catalog().Lookup(model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q: must be %q or a concrete catalog id", model, "auto")
	}

	return s.router.RouteToModel(entry.ID)
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, detail types.ErrorDetail) {
	writeJSON(w, statusCode, types.ErrorResponse{Error: detail})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
