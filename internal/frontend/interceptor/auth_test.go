package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthInterceptor_ValidSecret(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
	})

	require.NoError(t, err)
	require.NotNil(t, auth)
}

func TestNewAuthInterceptor_ShortSecret(t *testing.T) {
	_, err := NewAuthInterceptor(AuthConfig{
		SecretKey: "short",
	})

	assert.ErrorIs(t, err, ErrInvalidSecretKey)
}

func TestValidateToken_ValidToken(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
	})
	require.NoError(t, err)

	token := createTestToken(t, secret, testClaims{
		Subject:   "user-123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		IssuedAt:  time.Now().Unix(),
	})

	claims, err := auth.validator.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
	})
	require.NoError(t, err)

	token := createTestToken(t, secret, testClaims{
		Subject:   "user-123",
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
	})

	_, err = auth.validator.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateToken_InvalidSignature(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"
	wrongSecret := "different-secret-key-that-is-also-long-enough"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
	})
	require.NoError(t, err)

	token := createTestToken(t, wrongSecret, testClaims{
		Subject:   "user-123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	_, err = auth.validator.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
		Issuer:    "expected-issuer",
	})
	require.NoError(t, err)

	token := createTestToken(t, secret, testClaims{
		Subject:   "user-123",
		Issuer:    "wrong-issuer",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	_, err = auth.validator.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateToken_WrongAudience(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
		Audience:  "expected-audience",
	})
	require.NoError(t, err)

	token := createTestToken(t, secret, testClaims{
		Subject:   "user-123",
		Audience:  []string{"wrong-audience"},
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	_, err = auth.validator.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateToken_MalformedToken(t *testing.T) {
	secret := "this-is-a-very-long-secret-key-for-testing-purposes"

	auth, err := NewAuthInterceptor(AuthConfig{
		SecretKey: secret,
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no dots", "notokenhere"},
		{"one dot", "part1.part2"},
		{"invalid base64", "!!!.@@@.###"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.validator.Validate(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}

// testClaims mirrors the shape of authn's engineClaims for minting
// tokens in tests; it is a separate, unexported type since the real
// claims struct isn't exported by the authn package.
type testClaims struct {
	Subject     string
	Issuer      string
	Audience    []string
	ExpiresAt   int64
	IssuedAt    int64
	WorkspaceID string
	UserID      string
	Roles       []string
	Scopes      []string
}

func createTestToken(t *testing.T, secret string, c testClaims) string {
	t.Helper()

	claims := jwt.MapClaims{}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = c.Audience
	}
	if c.ExpiresAt != 0 {
		claims["exp"] = c.ExpiresAt
	}
	if c.IssuedAt != 0 {
		claims["iat"] = c.IssuedAt
	}
	if c.WorkspaceID != "" {
		claims["workspace_id"] = c.WorkspaceID
	}
	if c.UserID != "" {
		claims["user_id"] = c.UserID
	}
	if len(c.Roles) > 0 {
		claims["roles"] = c.Roles
	}
	if len(c.Scopes) > 0 {
		claims["scopes"] = c.Scopes
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
