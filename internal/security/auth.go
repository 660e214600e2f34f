package security

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/clawrouter/claw-router/internal/types"
)

// Permissions granted to an authenticated caller. claw-router is a
// single-operator proxy, so there is no per-user permission model to speak
// of: a configured API key can route chat requests, and can additionally
// hit the operator-only endpoints (currently just POST /reload).
const (
	PermissionRouteChat  = "route:chat"
	PermissionRouteAdmin = "route:admin"
)

// AuthProvider defines the interface for authentication providers
type AuthProvider interface {
	Authenticate(ctx context.Context, token string) (*AuthInfo, error)
	ValidateAPIKey(ctx context.Context, apiKey string) (*AuthInfo, error)
	GenerateJWT(userID string, claims map[string]interface{}) (string, error)
	ValidateJWT(tokenString string) (*JWTClaims, error)
}

// AuthInfo contains authenticated user information
type AuthInfo struct {
	UserID      string            `json:"user_id"`
	APIKey      string            `json:"api_key,omitempty"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID      string            `json:"user_id"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	APIKeys          []string      `yaml:"api_keys"`
	JWTSecret        string        `yaml:"jwt_secret"`
	JWTExpiry        time.Duration `yaml:"jwt_expiry"`
	RequireAuth      bool          `yaml:"require_auth"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	TrustedProxies   []string      `yaml:"trusted_proxies"`
}

// DefaultAuthProvider implements the AuthProvider interface
type DefaultAuthProvider struct {
	config *Config
	logger *logrus.Logger
}

// NewDefaultAuthProvider creates a new authentication provider
func NewDefaultAuthProvider(config *Config, logger *logrus.Logger) *DefaultAuthProvider {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	
	return &DefaultAuthProvider{
		config: config,
		logger: logger,
	}
}

// Authenticate validates a token (API key or JWT)
func (a *DefaultAuthProvider) Authenticate(ctx context.Context, token string) (*AuthInfo, error) {
	// Try API key first
	if authInfo, err := a.ValidateAPIKey(ctx, token); err == nil {
		return authInfo, nil
	}
	
	// Try JWT token
	if claims, err := a.ValidateJWT(token); err == nil {
		return &AuthInfo{
			UserID:      claims.UserID,
			Permissions: claims.Permissions,
			Metadata:    claims.Metadata,
			ExpiresAt:   &claims.ExpiresAt.Time,
		}, nil
	}
	
	return nil, errors.New("invalid authentication token")
}

// ValidateAPIKey validates an API key
func (a *DefaultAuthProvider) ValidateAPIKey(ctx context.Context, apiKey string) (*AuthInfo, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	
	// Use constant-time comparison to prevent timing attacks
	for i, validKey := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			return &AuthInfo{
				UserID:      generateUserID(apiKey),
				APIKey:      apiKey,
				Permissions: []string{PermissionRouteChat, PermissionRouteAdmin},
				Metadata: map[string]string{
					"key_index": strconv.Itoa(i),
					"auth_type": "api_key",
				},
			}, nil
		}
	}
	
	a.logger.WithFields(logrus.Fields{
		"api_key_prefix": maskAPIKey(apiKey),
		"remote_ip":      getClientIP(ctx),
	}).Warn("Invalid API key attempted")
	
	return nil, errors.New("invalid API key")
}

// GenerateJWT generates a new JWT token
func (a *DefaultAuthProvider) GenerateJWT(userID string, claims map[string]interface{}) (string, error) {
	now := time.Now()
	
	jwtClaims := &JWTClaims{
		UserID: userID,
		Metadata: make(map[string]string),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "claw-router",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	
	// Add custom claims
	for key, value := range claims {
		switch key {
		case "permissions":
			if perms, ok := value.([]string); ok {
				jwtClaims.Permissions = perms
			}
		default:
			if strVal, ok := value.(string); ok {
				jwtClaims.Metadata[key] = strVal
			}
		}
	}
	
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	return token.SignedString([]byte(a.config.JWTSecret))
}

// ValidateJWT validates a JWT token
func (a *DefaultAuthProvider) ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.config.JWTSecret), nil
	})
	
	if err != nil {
		return nil, err
	}
	
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	
	return nil, errors.New("invalid JWT token")
}

// AuthMiddleware creates authentication middleware
func (a *DefaultAuthProvider) AuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check endpoints
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			
			// Skip auth if not required
			if !a.config.RequireAuth {
				next.ServeHTTP(w, r)
				return
			}
			
			// Extract token from Authorization header or API-Key header
			token := extractToken(r)
			if token == "" {
				a.writeUnauthorized(w, "Missing authentication token")
				return
			}

			remoteIP := a.clientIP(r)

			// Authenticate token
			ctx := context.WithValue(r.Context(), "client_ip", remoteIP)
			authInfo, err := a.Authenticate(ctx, token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"error":     err.Error(),
					"path":      r.URL.Path,
					"method":    r.Method,
					"remote_ip": remoteIP,
					"user_agent": r.UserAgent(),
				}).Warn("Authentication failed")

				a.writeUnauthorized(w, "Invalid authentication token")
				return
			}

			// Add auth info to request context
			ctx = context.WithValue(r.Context(), "auth_info", authInfo)

			// Log successful authentication
			a.logger.WithFields(logrus.Fields{
				"user_id":    authInfo.UserID,
				"auth_type":  authInfo.Metadata["auth_type"],
				"path":       r.URL.Path,
				"method":     r.Method,
				"remote_ip":  remoteIP,
			}).Debug("Authentication successful")
			
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions

func extractToken(r *http.Request) string {
	// Try Authorization header first (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	
	// Try API-Key header
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	
	// Try API-Key header (alternative)
	if apiKey := r.Header.Get("API-Key"); apiKey != "" {
		return apiKey
	}
	
	return ""
}

func generateUserID(apiKey string) string {
	// Generate a consistent user ID from API key ("user_" + first 8 chars)
	if len(apiKey) >= 8 {
		return "user_" + apiKey[:8]
	}
	return "user_" + apiKey
}

func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:4] + "****" + apiKey[len(apiKey)-4:]
}

func getClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value("client_ip").(string); ok {
		return ip
	}
	return "unknown"
}

// clientIP resolves the caller's address the way AuthMiddleware's logging
// and audit trail should: X-Forwarded-For/X-Real-IP are only honored when
// the immediate peer (RemoteAddr) is a configured trusted proxy, since
// otherwise any client can spoof those headers to hide its real address.
// With no TrustedProxies configured (the default for a proxy that isn't
// sitting behind anything), the headers are trusted unconditionally, same
// as before this check existed.
func (a *DefaultAuthProvider) clientIP(r *http.Request) string {
	remote := stripPort(r.RemoteAddr)

	if len(a.config.TrustedProxies) > 0 && !stringInSlice(remote, a.config.TrustedProxies) {
		return remote
	}
	return getClientIPFromRequest(r)
}

func stripPort(addr string) string {
	if colonIndex := strings.LastIndex(addr, ":"); colonIndex != -1 {
		return addr[:colonIndex]
	}
	return addr
}

func stringInSlice(needle string, haystack []string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func getClientIPFromRequest(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	
	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	if colonIndex := strings.LastIndex(ip, ":"); colonIndex != -1 {
		ip = ip[:colonIndex]
	}
	
	return ip
}

func (a *DefaultAuthProvider) writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: types.ErrorDetail{
			Type:    "authentication_error",
			Message: message,
		},
	})
}

// GetAuthInfo extracts authentication info from request context
func GetAuthInfo(ctx context.Context) (*AuthInfo, bool) {
	if authInfo, ok := ctx.Value("auth_info").(*AuthInfo); ok {
		return authInfo, true
	}
	return nil, false
}