package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/security"
)

// SecurityMiddlewareConfig holds configuration for security middleware
type SecurityMiddlewareConfig struct {
	Auth       *security.Config           `yaml:"auth"`
	RateLimit  *security.RateLimitConfig  `yaml:"rate_limit"`
	Validation *security.ValidationConfig `yaml:"validation"`
	Audit      *security.AuditConfig      `yaml:"audit"`
}

// SecurityMiddleware combines all security middleware components
type SecurityMiddleware struct {
	authProvider   *security.DefaultAuthProvider
	rateLimiter    security.RateLimiter
	validator      *security.RequestValidator
	auditor        *security.AuditLogger
	logger         *logrus.Logger
	allowedOrigins []string
}

// NewSecurityMiddleware creates a new security middleware stack
func NewSecurityMiddleware(config *SecurityMiddlewareConfig, logger *logrus.Logger) (*SecurityMiddleware, error) {
	// Initialize authentication provider
	var authProvider *security.DefaultAuthProvider
	if config.Auth != nil {
		authProvider = security.NewDefaultAuthProvider(config.Auth, logger)
	}
	
	// Initialize rate limiter
	var rateLimiter security.RateLimiter
	if config.RateLimit != nil && config.RateLimit.Enabled {
		rateLimiter = security.NewInMemoryRateLimiter(config.RateLimit, logger)
	}
	
	// Initialize request validator
	var validator *security.RequestValidator
	var err error
	if config.Validation != nil {
		validator, err = security.NewRequestValidator(config.Validation, logger)
		if err != nil {
			return nil, err
		}
	}
	
	// Initialize audit logger
	var auditor *security.AuditLogger
	if config.Audit != nil {
		auditor = security.NewAuditLogger(config.Audit, logger)
	}

	var allowedOrigins []string
	if config.Auth != nil {
		allowedOrigins = config.Auth.AllowedOrigins
	}

	return &SecurityMiddleware{
		authProvider:   authProvider,
		rateLimiter:    rateLimiter,
		validator:      validator,
		auditor:        auditor,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}, nil
}

// Handler creates the complete security middleware chain
func (s *SecurityMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Each wrap below makes its middleware the new outermost layer, so
		// to get execution order 1-6 the wraps are applied 6 down to 1:
		// the last one applied runs first.
		handler := next

		// 6. Security headers (innermost: responses rejected by layers 1-5 do
		// not carry them)
		handler = s.securityHeadersMiddleware()(handler)

		// 5. CORS (browser-facing clients calling the proxy directly)
		if len(s.allowedOrigins) > 0 {
			handler = s.CORSMiddleware(s.allowedOrigins)(handler)
		}

		// 4. Request validation
		if s.validator != nil {
			handler = s.validator.ValidationMiddleware()(handler)
		}

		// 3. Rate limiting (after auth to use user-based limits)
		if s.rateLimiter != nil {
			keyExtractor := security.DefaultKeyExtractor
			handler = security.RateLimitMiddleware(s.rateLimiter, keyExtractor)(handler)
		}

		// 2. Authentication (before rate limiting so limits key off the user)
		if s.authProvider != nil {
			handler = s.authProvider.AuthMiddleware()(handler)
		}

		// 1. Audit logging (outermost - logs everything, including
		// requests that authentication or rate limiting go on to reject)
		if s.auditor != nil {
			handler = s.auditor.AuditMiddleware()(handler)
		}

		return handler
	}
}

// AuthenticationOnly returns only the authentication middleware, for
// callers (tests, alternate mux configurations) that want one stage of
// the chain in isolation rather than the full Handler().
func (s *SecurityMiddleware) AuthenticationOnly() func(http.Handler) http.Handler {
	if s.authProvider != nil {
		return s.authProvider.AuthMiddleware()
	}
	return func(next http.Handler) http.Handler { return next }
}

// RateLimitingOnly returns only the rate limiting middleware
func (s *SecurityMiddleware) RateLimitingOnly() func(http.Handler) http.Handler {
	if s.rateLimiter != nil {
		keyExtractor := security.DefaultKeyExtractor
		return security.RateLimitMiddleware(s.rateLimiter, keyExtractor)
	}
	return func(next http.Handler) http.Handler { return next }
}

// ValidationOnly returns only the validation middleware
func (s *SecurityMiddleware) ValidationOnly() func(http.Handler) http.Handler {
	if s.validator != nil {
		return s.validator.ValidationMiddleware()
	}
	return func(next http.Handler) http.Handler { return next }
}

// AuditOnly returns only the audit logging middleware
func (s *SecurityMiddleware) AuditOnly() func(http.Handler) http.Handler {
	if s.auditor != nil {
		return s.auditor.AuditMiddleware()
	}
	return func(next http.Handler) http.Handler { return next }
}

// securityHeadersMiddleware adds security headers to responses
func (s *SecurityMiddleware) securityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Security headers
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			
			// Remove server information
			w.Header().Del("Server")
			w.Header().Set("Server", "claw-router/1.0")
			
			// Add custom security headers
			w.Header().Set("X-API-Version", "1.0")
			w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))
			
			next.ServeHTTP(w, r)
		})
	}
}

// Stop gracefully stops all middleware components
func (s *SecurityMiddleware) Stop() {
	if s.auditor != nil {
		s.auditor.Stop()
	}
	
	if rateLimiter, ok := s.rateLimiter.(*security.InMemoryRateLimiter); ok {
		rateLimiter.Stop()
	}
}

// GetStats returns security middleware statistics
func (s *SecurityMiddleware) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})
	
	// Add audit stats
	if s.auditor != nil {
		stats["audit_events_logged"] = s.auditor.GetEventCount()
	}
	
	// Add rate limiter stats (would need to implement this in rate limiter)
	stats["rate_limiter_enabled"] = s.rateLimiter != nil
	
	// Add validator stats
	stats["validation_enabled"] = s.validator != nil
	
	// Add auth stats
	stats["authentication_enabled"] = s.authProvider != nil
	
	return stats
}

// HealthCheck performs health checks on all security components
func (s *SecurityMiddleware) HealthCheck() error {
	// Check components are initialized
	if s.authProvider == nil {
		return fmt.Errorf("authentication provider not initialized")
	}
	
	// Additional health checks would go here
	// For example, check if external audit endpoint is reachable
	
	return nil
}

// LogSecurityEvent is a convenience method to log security events
func (s *SecurityMiddleware) LogSecurityEvent(ctx context.Context, eventType security.AuditEventType, message string, details map[string]interface{}) {
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, eventType, message, details)
	}
}

// RequirePermission returns middleware that rejects a request unless the
// AuthInfo AuthMiddleware placed in its context carries permission. It is
// meant to sit in front of operator-only routes (POST /reload) that every
// configured API key shouldn't necessarily be trusted with once a
// deployment starts handing out narrower keys. If authentication is
// disabled entirely (no authProvider configured), there is no identity to
// check permissions against, so the request passes through unchanged.
func (s *SecurityMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.authProvider == nil {
				next.ServeHTTP(w, r)
				return
			}

			authInfo, ok := security.GetAuthInfo(r.Context())
			if !ok || !hasPermission(authInfo.Permissions, permission) {
				s.logger.WithFields(logrus.Fields{
					"path":       r.URL.Path,
					"permission": permission,
				}).Warn("permission denied")
				http.Error(w, "permission denied", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasPermission(granted []string, want string) bool {
	for _, p := range granted {
		if p == want {
			return true
		}
	}
	return false
}

// CORSMiddleware creates CORS middleware for cross-origin requests
func (s *SecurityMiddleware) CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			
			// Check if origin is allowed
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					allowed = true
					break
				}
			}
			
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			
			// Handle preflight OPTIONS requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			
			next.ServeHTTP(w, r)
		})
	}
}