package authz_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-authz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var testSigningKey = []byte("test-signing-key-0123456789")

func newTestTokens() *authz.TokenService {
	return authz.NewTokenService(testSigningKey, 1, "test-issuer", []string{"test-audience"},
		authz.WithTokenLogger(nopLogger{}),
	)
}

type principalOption func(*authz.Principal)

func withRole(r authz.Role) principalOption {
	return func(p *authz.Principal) { p.Role = r }
}

func withSubscription(plan authz.Plan, status authz.SubscriptionStatus) principalOption {
	return func(p *authz.Principal) {
		p.Subscription = &authz.Subscription{Plan: plan, Status: status}
	}
}

func withEntitlement(productID string, status authz.EntitlementStatus) principalOption {
	return func(p *authz.Principal) {
		p.Entitlements = append(p.Entitlements, authz.Entitlement{ProductID: productID, Status: status})
	}
}

func withUsage(t authz.UsageType, n int) principalOption {
	return func(p *authz.Principal) { p.Usage[t] = n }
}

func newPrincipal(opts ...principalOption) *authz.Principal {
	p := &authz.Principal{
		ID:    uuid.New(),
		Email: "user@example.com",
		Role:  authz.RoleUser,
		Usage: authz.Usage{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(format string, args ...any) {}
func (l *recordingLogger) Info(format string, args ...any)  {}
func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

type nopLogger struct{}

func (nopLogger) Debug(format string, args ...any) {}
func (nopLogger) Info(format string, args ...any)  {}
func (nopLogger) Error(format string, args ...any) {}

// MockLoader implements authz.PrincipalLoader
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) LoadPrincipal(ctx context.Context, id string) (*authz.Principal, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*authz.Principal)
	return p, args.Error(1)
}

// MockRecorder implements authz.UsageRecorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) IncrementUsage(ctx context.Context, principalID uuid.UUID, usageType authz.UsageType, limit int) (bool, error) {
	args := m.Called(ctx, principalID, usageType, limit)
	return args.Bool(0), args.Error(1)
}

// memoryRecorder is an in process UsageRecorder
type memoryRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{counts: map[string]int{}}
}

func (r *memoryRecorder) IncrementUsage(_ context.Context, id uuid.UUID, t authz.UsageType, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := id.String() + ":" + string(t)
	if limit != authz.Unlimited && r.counts[key] >= limit {
		return false, nil
	}
	r.counts[key]++
	return true, nil
}

func (r *memoryRecorder) count(id uuid.UUID, t authz.UsageType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id.String()+":"+string(t)]
}

func bearer(token string) string {
	return "Bearer " + token
}
