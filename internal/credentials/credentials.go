// Package credentials resolves upstream provider tokens. The core treats
// credential resolution as an external capability: it knows only the
// environment variable names it may ask about, never how a token is
// ultimately produced (keychain, on-disk secret store, OAuth refresh).
// POST /reload invalidates the resolver's cache so a rotated credential
// is picked up on the next request without a restart.
package credentials

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Store resolves a bearer credential for a named upstream provider.
type Store interface {
	Resolve(ctx context.Context, provider string) (string, error)
	Invalidate()
}

// envVarsByProvider lists, per provider, the environment variables
// consulted in preference order. Anthropic accepts either a raw API key
// or a Claude Code OAuth token, per the external-interfaces contract.
var envVarsByProvider = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY", "CLAUDE_CODE_OAUTH_TOKEN"},
}

// EnvStore resolves credentials from environment variables, caching each
// resolved value until Invalidate is called. This bounds the number of
// os.Getenv calls on the hot path without hiding a rotated variable
// forever.
type EnvStore struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewEnvStore constructs an EnvStore with an empty cache.
func NewEnvStore() *EnvStore {
	return &EnvStore{cache: make(map[string]string)}
}

// Resolve returns the cached token for provider, populating the cache
// from the environment on first use or after Invalidate.
func (s *EnvStore) Resolve(ctx context.Context, provider string) (string, error) {
	s.mu.RLock()
	if token, ok := s.cache[provider]; ok {
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	names, known := envVarsByProvider[provider]
	if !known {
		return "", fmt.Errorf("credentials: unknown provider %q", provider)
	}

	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			s.mu.Lock()
			s.cache[provider] = v
			s.mu.Unlock()
			return v, nil
		}
	}

	return "", fmt.Errorf("credentials: no token available for provider %q (checked %v)", provider, names)
}

// Invalidate clears every cached token, forcing the next Resolve call
// for each provider to re-read the environment. Called on POST /reload.
func (s *EnvStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]string)
}

var _ Store = (*EnvStore)(nil)
