// Command claw-router runs the proxy as a standalone local process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/catalog"
	"github.com/clawrouter/claw-router/internal/classifier"
	"github.com/clawrouter/claw-router/internal/credentials"
	"github.com/clawrouter/claw-router/internal/config"
	"github.com/clawrouter/claw-router/internal/middleware"
	"github.com/clawrouter/claw-router/internal/providers"
	"github.com/clawrouter/claw-router/internal/providers/anthropic"
	"github.com/clawrouter/claw-router/internal/providers/openai"
	"github.com/clawrouter/claw-router/internal/routing"
	"github.com/clawrouter/claw-router/internal/server"
	"github.com/clawrouter/claw-router/internal/stats"
	"github.com/clawrouter/claw-router/internal/telemetry"
	"github.com/clawrouter/claw-router/internal/types"
)

// Exit codes per the external-interfaces contract: 0 on clean shutdown,
// 1 if the listener can't bind, 2 if no upstream provider has a usable
// credential at startup.
const (
	exitOK            = 0
	exitBindFailure   = 1
	exitNoCredentials = 2
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claw-router: failed to load configuration: %v\n", err)
		os.Exit(exitBindFailure)
	}

	logger := newLogger(cfg)

	registry := map[string]providers.LLMProvider{}
	if oaiCfg := cfg.OpenAIProviderConfig(); oaiCfg != nil {
		registry["openai"] = openai.New(oaiCfg, logger)
	}
	if anthCfg := cfg.AnthropicProviderConfig(); anthCfg != nil {
		registry["anthropic"] = anthropic.New(anthCfg, logger)
	}
	if len(registry) == 0 {
		logger.Error("no upstream provider credentials configured; set OPENAI_API_KEY and/or ANTHROPIC_API_KEY")
		os.Exit(exitNoCredentials)
	}

	cat := catalog.Default()
	router, err := buildRouter(cat, registry, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to build router")
		os.Exit(exitNoCredentials)
	}

	counters := stats.New()
	hooks := telemetry.NewLoggingHooks(logger, counters)
	credStore := credentials.NewEnvStore()

	srv, err := server.NewServer(router, registry, credStore, hooks, counters, serverConfig(cfg), logger)
	if err != nil {
		logger.WithError(err).Error("failed to build server")
		os.Exit(exitBindFailure)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Error("server failed to start")
		os.Exit(exitBindFailure)
	case <-sigCh:
		logger.Info("received shutdown signal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		os.Exit(exitBindFailure)
	}

	os.Exit(exitOK)
}

// buildRouter wires the classifier stages over cat, binding the LLM
// Classifier's fallback completer to whichever registered provider
// serves the SIMPLE tier's primary model, per the component design's
// "bound to the catalog's SIMPLE primary" rule.
func buildRouter(cat *catalog.Catalog, registry map[string]providers.LLMProvider, cfg *config.Config, logger *logrus.Logger) (*routing.Router, error) {
	primaryID, ok := cat.Primary(classifier.TierSimple)
	if !ok {
		return nil, fmt.Errorf("catalog has no SIMPLE tier primary configured")
	}
	entry, ok := cat.Lookup(primaryID)
	if !ok {
		return nil, fmt.Errorf("catalog primary %q not found", primaryID)
	}

	completer := &providerCompleter{model: primaryID}
	if provider, ok := registry[entry.Provider]; ok {
		completer.provider = provider
	} else {
		for name, provider := range registry {
			completer.provider = provider
			completer.model = fallbackModelFor(cat, name)
			break
		}
	}

	cache := classifier.NewCache()
	llm := classifier.NewLLMClassifier(cache, completer, logger)
	rules := classifier.NewRuleClassifier()

	scoring := classifier.DefaultScoringConfig()
	if cfg.Routing.Scoring != nil {
		scoring = scoring.Merge(cfg.Routing.Scoring)
	}
	return routing.NewRouter(cat, rules, llm, scoring, logger), nil
}

func fallbackModelFor(cat *catalog.Catalog, provider string) string {
	for _, entry := range cat.All() {
		if entry.Provider == provider {
			return entry.ID
		}
	}
	return ""
}

// providerCompleter adapts a providers.LLMProvider's ChatCompletion call
// into the classifier.Completer interface the LLM Classifier depends on.
type providerCompleter struct {
	provider providers.LLMProvider
	model    string
}

func (c *providerCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.provider == nil {
		return "", fmt.Errorf("no provider registered to serve the LLM classifier fallback")
	}
	maxTokens := 10
	var temperature float32
	resp, err := c.provider.ChatCompletion(ctx, &types.ChatRequest{
		Model:       c.model,
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	text, _ := resp.Choices[0].Message.Content.(string)
	return text, nil
}

func serverConfig(cfg *config.Config) *server.Config {
	return &server.Config{
		Port:           cfg.Server.Port,
		BindAddress:    cfg.Server.BindAddress,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		WalletAddress:  cfg.Wallet.Address,
		Security: &middleware.SecurityMiddlewareConfig{
			Auth:       cfg.ToSecurityAuthConfig(),
			RateLimit:  cfg.ToRateLimitConfig(),
			Validation: cfg.ToValidationConfig(),
			Audit:      cfg.ToAuditConfig(),
		},
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	switch cfg.Logging.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout", "":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.SetOutput(os.Stdout)
			logger.WithError(err).Warn("cannot open log output file, logging to stdout")
		} else {
			logger.SetOutput(f)
		}
	}

	return logger
}
