package authn

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("signature invalid")
)

// Claims represents JWT claims.
type Claims struct {
	Subject   string   `json:"sub"`
	Issuer    string   `json:"iss"`
	Audience  []string `json:"aud"`
	ExpiresAt int64    `json:"exp"`
	IssuedAt  int64    `json:"iat"`
	NotBefore int64    `json:"nbf"`

	// Custom claims
	WorkspaceID string   `json:"workspace_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// IsExpired checks if the token is expired.
func (c *Claims) IsExpired() bool {
	return time.Now().Unix() > c.ExpiresAt
}

// HasScope checks if the token has a specific scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasRole checks if the token has a specific role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// JWTValidator validates JWT tokens.
type JWTValidator struct {
	issuer    string
	audience  string
	publicKey *rsa.PublicKey
	secretKey []byte // For HMAC

	// JWKS support
	jwksURL   string
	jwksCache map[string]*rsa.PublicKey
	jwksMu    sync.RWMutex
}

// JWTConfig holds JWT validator configuration.
type JWTConfig struct {
	Issuer    string
	Audience  string
	PublicKey string // PEM-encoded public key
	SecretKey string // For HMAC
	JWKSURL   string // For dynamic key fetching
}

// NewJWTValidator creates a new JWT validator.
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	v := &JWTValidator{
		issuer:    config.Issuer,
		audience:  config.Audience,
		jwksURL:   config.JWKSURL,
		jwksCache: make(map[string]*rsa.PublicKey),
	}

	if config.PublicKey != "" {
		block, _ := pem.Decode([]byte(config.PublicKey))
		if block == nil {
			return nil, errors.New("failed to parse PEM block")
		}

		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}

		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}

		v.publicKey = rsaPub
	}

	if config.SecretKey != "" {
		v.secretKey = []byte(config.SecretKey)
	}

	return v, nil
}

// engineClaims is the wire shape golang-jwt parses into; it embeds
// jwt.RegisteredClaims so expiry/issuer/audience checks run through the
// library instead of by-hand comparisons.
type engineClaims struct {
	WorkspaceID string   `json:"workspace_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Validate verifies a token's signature (HS256 or RS256) and standard
// claims via golang-jwt/jwt, then projects the result onto Claims.
func (v *JWTValidator) Validate(ctx context.Context, token string) (*Claims, error) {
	var claims engineClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, v.keyFunc, jwt.WithValidMethods([]string{"HS256", "RS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrSignatureInvalid
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrTokenInvalid
	}
	if v.audience != "" && !containsString([]string(claims.Audience), v.audience) {
		return nil, ErrTokenInvalid
	}

	out := &Claims{
		Subject:     claims.Subject,
		Issuer:      claims.Issuer,
		Audience:    []string(claims.Audience),
		WorkspaceID: claims.WorkspaceID,
		UserID:      claims.UserID,
		Roles:       claims.Roles,
		Scopes:      claims.Scopes,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.NotBefore != nil {
		out.NotBefore = claims.NotBefore.Unix()
	}
	return out, nil
}

// keyFunc resolves the verification key for the token's announced
// algorithm. "none" is rejected implicitly: it isn't in WithValidMethods.
func (v *JWTValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.Alg() {
	case "HS256":
		if len(v.secretKey) == 0 {
			return nil, errors.New("HMAC secret key not configured")
		}
		return v.secretKey, nil
	case "RS256":
		if v.publicKey == nil {
			return nil, errors.New("RSA public key not configured")
		}
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", token.Method.Alg())
	}
}

// Query parameter extraction has been removed as it's a security risk.
func ExtractToken(r *http.Request) (string, error) {
	// Check Authorization header (preferred method)
	auth := r.Header.Get("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token := strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}

	// Check HttpOnly cookie (for browser-based authentication)
	// Note: Cookie should be set with HttpOnly, Secure, and SameSite flags
	cookie, err := r.Cookie("__Host-token")
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	// Fallback to legacy cookie name for backwards compatibility
	cookie, err = r.Cookie("token")
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	// SECURITY: Query parameter token extraction has been intentionally removed
	// Tokens in URLs can be logged, cached, leaked via Referer headers, and
	// stored in browser history. This is a significant security risk.

	return "", errors.New("no token found")
}

// APIKeyValidator validates API keys.
type APIKeyValidator struct {
	keys   map[string]*APIKey
	keysMu sync.RWMutex

	loader APIKeyLoader
}

// APIKey represents an API key.
type APIKey struct {
	ID          string
	Key         string
	Name        string
	WorkspaceID string
	Scopes      []string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// APIKeyLoader loads API keys.
type APIKeyLoader interface {
	Load(ctx context.Context, keyHash string) (*APIKey, error)
}

// NewAPIKeyValidator creates a new API key validator.
func NewAPIKeyValidator(loader APIKeyLoader) *APIKeyValidator {
	return &APIKeyValidator{
		keys:   make(map[string]*APIKey),
		loader: loader,
	}
}

// Validate validates an API key.
func (v *APIKeyValidator) Validate(ctx context.Context, key string) (*APIKey, error) {
	// Check cache
	v.keysMu.RLock()
	cached, exists := v.keys[key]
	v.keysMu.RUnlock()

	if exists {
		if cached.ExpiresAt != nil && time.Now().After(*cached.ExpiresAt) {
			v.keysMu.Lock()
			delete(v.keys, key)
			v.keysMu.Unlock()
			return nil, ErrTokenExpired
		}
		return cached, nil
	}

	// Load from storage
	if v.loader == nil {
		return nil, ErrTokenInvalid
	}

	apiKey, err := v.loader.Load(ctx, hashKey(key))
	if err != nil {
		return nil, ErrTokenInvalid
	}

	// Cache
	v.keysMu.Lock()
	v.keys[key] = apiKey
	v.keysMu.Unlock()

	return apiKey, nil
}

// ExtractAPIKey extracts API key from request.
func ExtractAPIKey(r *http.Request) (string, error) {
	// Check header
	key := r.Header.Get("X-API-Key")
	if key != "" {
		return key, nil
	}

	// Check Authorization header with ApiKey scheme
	auth := r.Header.Get("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "apikey") {
			return parts[1], nil
		}
	}

	return "", errors.New("no API key found")
}

// Helper functions

func containsString(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// The hash is used for storage and comparison to avoid storing plaintext keys.
func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
