package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds token and dispatch options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetAuthScheme() string
	GetContextKey() string
}

// TokenValidator validates a raw bearer token and returns its claims.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, NewFailure(ReasonInvalidCredential, nil)
	}
	return f(tokenString)
}

// PrincipalLoader resolves a principal identifier into a full Principal.
// Implementations return a ReasonPrincipalNotFound failure when no record
// matches.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, id string) (*Principal, error)
}

// PrincipalLoaderFunc adapts a function into a PrincipalLoader.
type PrincipalLoaderFunc func(ctx context.Context, id string) (*Principal, error)

// LoadPrincipal satisfies the PrincipalLoader interface.
func (f PrincipalLoaderFunc) LoadPrincipal(ctx context.Context, id string) (*Principal, error) {
	return f(ctx, id)
}

// UsageRecorder atomically increments a usage counter unless doing so would
// exceed limit. It reports whether the increment was applied.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, principalID uuid.UUID, usageType UsageType, limit int) (bool, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHZ "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHZ "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHZ "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
