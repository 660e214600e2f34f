package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai-key")
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic-key")
	t.Setenv("BLOCKRUN_WALLET_KEY", "0xenvwallet")
	t.Setenv("CLAWROUTER_LOG_LEVEL", "debug")
	t.Setenv("CLAWROUTER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-openai-key", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "env-anthropic-key", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, "0xenvwallet", cfg.Wallet.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_InvalidLogLevelFails(t *testing.T) {
	t.Setenv("CLAWROUTER_LOG_LEVEL", "not-a-level")

	_, err := Load("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoad_FromFileOverridesDefaultsThenEnvOverridesFile(t *testing.T) {
	configContent := `
server:
  port: 3000
  bind_address: "0.0.0.0"
logging:
  level: "warn"
wallet:
  address: "0xfilewallet"
`
	tmpFile, err := os.CreateTemp("", "claw-router-config-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	t.Setenv("CLAWROUTER_LOG_LEVEL", "error")

	cfg, err := Load(tmpFile.Name())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress)
	assert.Equal(t, "0xfilewallet", cfg.Wallet.Address)
	// CLAWROUTER_LOG_LEVEL overlays the file value, per the
	// defaults-then-file-then-env precedence Load documents.
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_MissingFilePathFails(t *testing.T) {
	_, err := Load("/nonexistent/claw-router-config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidTierBoundariesRejected(t *testing.T) {
	configContent := `
routing:
  scoring:
    tierboundaries: [0.5, 0.2, 0.8]
`
	tmpFile, err := os.CreateTemp("", "claw-router-config-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	_, err = Load(tmpFile.Name())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tier_boundaries")
}

func TestConfig_OpenAIProviderConfig_NilWithoutAPIKey(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()

	assert.Nil(t, cfg.OpenAIProviderConfig())
}

func TestConfig_OpenAIProviderConfig_PopulatedWithAPIKey(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Providers.OpenAI.BaseURL = "https://example.test/v1"

	oaiCfg := cfg.OpenAIProviderConfig()
	require.NotNil(t, oaiCfg)
	assert.Equal(t, "sk-test", oaiCfg.APIKey)
	assert.Equal(t, "https://example.test/v1", oaiCfg.BaseURL)
}

func TestConfig_AnthropicProviderConfig_PopulatedWithAPIKey(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"

	anthCfg := cfg.AnthropicProviderConfig()
	require.NotNil(t, anthCfg)
	assert.Equal(t, "sk-ant-test", anthCfg.APIKey)
}

func TestConfig_ToSecurityAuthConfig_RequiresAuthOnlyWithKeysConfigured(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()

	assert.False(t, cfg.ToSecurityAuthConfig().RequireAuth)

	cfg.Security.APIKeys = []string{"secret-key"}
	assert.True(t, cfg.ToSecurityAuthConfig().RequireAuth)
}

func TestConfig_SaveToFile_RoundTrips(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Server.Port = 4000

	tmpFile, err := os.CreateTemp("", "claw-router-save-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	require.NoError(t, tmpFile.Close())

	require.NoError(t, cfg.SaveToFile(tmpFile.Name()))

	reloaded := &Config{}
	require.NoError(t, reloaded.loadFromFile(tmpFile.Name()))
	assert.Equal(t, 4000, reloaded.Server.Port)
}
