// Package config loads the proxy's startup configuration: an optional
// YAML file overlaid with environment variables, validated once before
// the application boots.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clawrouter/claw-router/internal/classifier"
	"github.com/clawrouter/claw-router/internal/providers/anthropic"
	"github.com/clawrouter/claw-router/internal/providers/openai"
	"github.com/clawrouter/claw-router/internal/security"
)

// Config is the top-level configuration loaded once at startup. Unknown
// YAML fields are ignored rather than rejected.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Providers ProvidersConfig `yaml:"providers"`
	Routing   RoutingOverrides `yaml:"routing"`
	Security  SecurityConfig  `yaml:"security"`
	Wallet    WalletConfig    `yaml:"wallet"`
}

// ServerConfig holds HTTP server configuration. The proxy binds to
// loopback by default per the external-interfaces contract.
type ServerConfig struct {
	Port           int    `yaml:"port"`
	BindAddress    string `yaml:"bind_address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// LoggingConfig holds structured-logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// ProviderConfig is the per-upstream configuration shared by every
// provider client (A5): credentials, endpoint override, call timeout.
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProvidersConfig groups per-upstream provider configuration.
type ProvidersConfig struct {
	OpenAI    *ProviderConfig `yaml:"openai"`
	Anthropic *ProviderConfig `yaml:"anthropic"`
}

// RoutingOverrides holds deployment routing overrides. Scoring is a
// partial classifier.ScoringConfig that is merged onto the compiled-in
// defaults at startup; unset (zero-value) fields leave the default
// untouched, and keyword lists are not overridable (see
// classifier.ScoringConfig.Merge). ModelOverrides is decoded and kept on
// the Config, but no component reads it: routing always uses the
// compiled-in catalog.
type RoutingOverrides struct {
	Scoring        *classifier.ScoringConfig `yaml:"scoring"`
	ModelOverrides map[string]string         `yaml:"model_overrides"`
}

// SecurityConfig holds the ambient middleware chain's configuration (A4).
type SecurityConfig struct {
	APIKeys           []string          `yaml:"api_keys"`
	RateLimiting      RateLimitConfig   `yaml:"rate_limiting"`
	CORS              CORSConfig        `yaml:"cors"`
	RequestValidation ValidationConfig  `yaml:"request_validation"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RequestsPerMin int           `yaml:"requests_per_minute"`
	BurstSize      int           `yaml:"burst_size"`
	WindowDuration time.Duration `yaml:"window_duration"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ValidationConfig holds request validation configuration.
type ValidationConfig struct {
	MaxRequestSize   int64 `yaml:"max_request_size"`
	MaxMessageLength int   `yaml:"max_message_length"`
	MaxMessages      int   `yaml:"max_messages"`
}

// WalletConfig holds the local wallet identity surfaced by GET /health.
// The key material itself is resolved externally (BLOCKRUN_WALLET_KEY);
// this struct only carries the address the health endpoint reports.
type WalletConfig struct {
	Address string `yaml:"address"`
}

const defaultPort = 18800

// Load builds a Config by applying defaults, overlaying an optional YAML
// file, then overlaying environment variables, and finally validating
// the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           defaultPort,
		BindAddress:    "127.0.0.1",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   0, // streaming responses have no fixed write deadline
		MaxHeaderBytes: 1 << 20,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		APIKeys: []string{},
		RateLimiting: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 60,
			BurstSize:      10,
			WindowDuration: time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		},
		RequestValidation: ValidationConfig{
			MaxRequestSize:   10 << 20,
			MaxMessageLength: 100_000,
			MaxMessages:      50,
		},
	}

	c.Providers = ProvidersConfig{
		OpenAI:    &ProviderConfig{Timeout: 120 * time.Second},
		Anthropic: &ProviderConfig{Timeout: 120 * time.Second},
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnv overlays the environment variables the core names in its
// external-interfaces contract. Credential resolution proper (keychain,
// on-disk secrets store) is the external resolver's job; this only picks
// up the handful of names the spec says the core itself asks about.
func (c *Config) loadFromEnv() {
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" && c.Providers.OpenAI != nil {
		c.Providers.OpenAI.APIKey = openaiKey
	}
	if anthropicKey := os.Getenv("ANTHROPIC_API_KEY"); anthropicKey != "" && c.Providers.Anthropic != nil {
		c.Providers.Anthropic.APIKey = anthropicKey
	}
	if wallet := os.Getenv("BLOCKRUN_WALLET_KEY"); wallet != "" {
		c.Wallet.Address = wallet
	}
	if level := os.Getenv("CLAWROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if port := os.Getenv("CLAWROUTER_PORT"); port != "" {
		if p, err := parsePort(port); err == nil {
			c.Server.Port = p
		}
	}
}

func parsePort(s string) (int, error) {
	var p int
	_, err := fmt.Sscanf(s, "%d", &p)
	return p, err
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Routing.Scoring != nil {
		b := c.Routing.Scoring.TierBoundaries
		if b != [3]float64{} && !(b[0] < b[1] && b[1] < b[2]) {
			return fmt.Errorf("routing.scoring.tier_boundaries must be strictly increasing, got %v", b)
		}
	}

	return nil
}

// ToSecurityAuthConfig converts to security.Config (A3 credential/auth
// middleware inputs).
func (c *Config) ToSecurityAuthConfig() *security.Config {
	return &security.Config{
		APIKeys:        c.Security.APIKeys,
		RequireAuth:    len(c.Security.APIKeys) > 0,
		AllowedOrigins: c.Security.CORS.AllowedOrigins,
	}
}

// ToRateLimitConfig converts to security.RateLimitConfig.
func (c *Config) ToRateLimitConfig() *security.RateLimitConfig {
	return &security.RateLimitConfig{
		Enabled:           c.Security.RateLimiting.Enabled,
		RequestsPerMinute: c.Security.RateLimiting.RequestsPerMin,
		BurstSize:         c.Security.RateLimiting.BurstSize,
		WindowDuration:    c.Security.RateLimiting.WindowDuration,
		CleanupInterval:   5 * time.Minute,
	}
}

// ToValidationConfig converts to security.ValidationConfig.
func (c *Config) ToValidationConfig() *security.ValidationConfig {
	return &security.ValidationConfig{
		MaxRequestSize: c.Security.RequestValidation.MaxRequestSize,
		AllowedMethods: c.Security.CORS.AllowedMethods,
		ContentTypes:   []string{"application/json"},
		MaxJSONDepth:   20,
		MaxFieldLength: c.Security.RequestValidation.MaxMessageLength,
	}
}

// ToAuditConfig converts to security.AuditConfig.
func (c *Config) ToAuditConfig() *security.AuditConfig {
	return &security.AuditConfig{
		Enabled:       true,
		BufferSize:    1000,
		FlushInterval: 10 * time.Second,
	}
}

// OpenAIProviderConfig converts the loaded config into an openai.Config,
// or nil if no OpenAI credentials are configured.
func (c *Config) OpenAIProviderConfig() *openai.Config {
	if c.Providers.OpenAI == nil || c.Providers.OpenAI.APIKey == "" {
		return nil
	}
	return &openai.Config{
		APIKey:  c.Providers.OpenAI.APIKey,
		BaseURL: c.Providers.OpenAI.BaseURL,
		Timeout: c.Providers.OpenAI.Timeout,
	}
}

// AnthropicProviderConfig converts the loaded config into an
// anthropic.Config, or nil if no Anthropic credentials are configured.
func (c *Config) AnthropicProviderConfig() *anthropic.Config {
	if c.Providers.Anthropic == nil || c.Providers.Anthropic.APIKey == "" {
		return nil
	}
	return &anthropic.Config{
		APIKey:  c.Providers.Anthropic.APIKey,
		BaseURL: c.Providers.Anthropic.BaseURL,
		Timeout: c.Providers.Anthropic.Timeout,
	}
}

// SaveToFile writes the current configuration back out as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
