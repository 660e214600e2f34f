package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStore_ResolvesConfiguredProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")

	store := NewEnvStore()
	token, err := store.Resolve(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", token)
}

func TestEnvStore_PrefersAPIKeyOverOAuthToken(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-primary")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "oauth-fallback")

	store := NewEnvStore()
	token, err := store.Resolve(context.Background(), "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-primary", token)
}

func TestEnvStore_FallsBackToOAuthToken(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_CODE_OAUTH_TOKEN", "oauth-fallback")

	store := NewEnvStore()
	token, err := store.Resolve(context.Background(), "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "oauth-fallback", token)
}

func TestEnvStore_UnknownProviderErrors(t *testing.T) {
	store := NewEnvStore()
	_, err := store.Resolve(context.Background(), "cohere")
	assert.Error(t, err)
}

func TestEnvStore_MissingCredentialErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	store := NewEnvStore()
	_, err := store.Resolve(context.Background(), "openai")
	assert.Error(t, err)
}

func TestEnvStore_CachesUntilInvalidated(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-first")

	store := NewEnvStore()
	token, err := store.Resolve(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-first", token)

	t.Setenv("OPENAI_API_KEY", "sk-second")
	token, err = store.Resolve(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-first", token, "cached value should not change until Invalidate")

	store.Invalidate()
	token, err = store.Resolve(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-second", token)
}
