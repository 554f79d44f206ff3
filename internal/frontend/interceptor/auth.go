package interceptor

import (
	"context"
	"errors"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/linkflow/engine/internal/security/authn"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "Bearer "
)

// AuthInterceptor authenticates unary and streaming RPCs against bearer
// tokens issued to API clients and workers. Verification itself is
// delegated to authn.JWTValidator; this type only owns the gRPC-specific
// plumbing (metadata extraction, method skip-list, context propagation).
type AuthInterceptor struct {
	skipMethods map[string]bool
	validator   *authn.JWTValidator
}

type AuthConfig struct {
	SkipMethods []string
	SecretKey   string // JWT signing secret (min 32 chars), HS256
	Issuer      string // Expected token issuer
	Audience    string // Expected token audience
}

// ErrInvalidSecretKey is returned when the JWT secret key is invalid.
var ErrInvalidSecretKey = errors.New("JWT_SECRET must be at least 32 characters for security")

// NewAuthInterceptor creates a new authentication interceptor.
// Returns an error if the secret key is too short (minimum 32 characters required).
func NewAuthInterceptor(cfg AuthConfig) (*AuthInterceptor, error) {
	skipMethods := make(map[string]bool)
	for _, method := range cfg.SkipMethods {
		skipMethods[method] = true
	}

	// Get secret key from config or environment
	secretKey := cfg.SecretKey
	if secretKey == "" {
		secretKey = os.Getenv("JWT_SECRET")
	}

	// Validate secret key length (min 32 chars for security)
	if len(secretKey) < 32 {
		return nil, ErrInvalidSecretKey
	}

	validator, err := authn.NewJWTValidator(authn.JWTConfig{
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		SecretKey: secretKey,
	})
	if err != nil {
		return nil, err
	}

	return &AuthInterceptor{
		skipMethods: skipMethods,
		validator:   validator,
	}, nil
}

func (a *AuthInterceptor) UnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	if a.skipMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token, err := a.extractToken(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := a.validator.Validate(ctx, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = context.WithValue(ctx, claimsContextKey{}, claims)

	return handler(ctx, req)
}

func (a *AuthInterceptor) StreamInterceptor(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	if a.skipMethods[info.FullMethod] {
		return handler(srv, ss)
	}

	token, err := a.extractToken(ss.Context())
	if err != nil {
		return err
	}

	_, err = a.validator.Validate(ss.Context(), token)
	if err != nil {
		return status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(srv, ss)
}

func (a *AuthInterceptor) extractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get(authorizationHeader)
	if len(authHeaders) == 0 {
		return "", status.Error(codes.Unauthenticated, "missing authorization header")
	}

	authHeader := authHeaders[0]
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", status.Error(codes.Unauthenticated, "invalid authorization header format")
	}

	return strings.TrimPrefix(authHeader, bearerPrefix), nil
}

type claimsContextKey struct{}

// ClaimsFromContext retrieves the claims attached by UnaryInterceptor.
func ClaimsFromContext(ctx context.Context) (*authn.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*authn.Claims)
	return claims, ok
}
