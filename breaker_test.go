package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-authz"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:    "test",
		Timeout: time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}
}

func TestBreakerLoaderOpensOnStoreFailures(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("LoadPrincipal", mock.Anything, "u1").Return(nil, errors.New("connection refused")).Twice()

	var transitions []gobreaker.State
	settings := testBreakerSettings()
	settings.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	bl := authz.NewBreakerLoader(loader, settings).WithLogger(nopLogger{})

	for i := 0; i < 2; i++ {
		_, err := bl.LoadPrincipal(ctx, "u1")
		require.Error(t, err)
		assert.NotEqual(t, authz.ReasonUnavailable, authz.ReasonOf(err))
	}

	assert.Equal(t, gobreaker.StateOpen, bl.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := bl.LoadPrincipal(ctx, "u1")
	assert.Equal(t, authz.ReasonUnavailable, authz.ReasonOf(err))

	status, env := authz.Failure(err)
	assert.Equal(t, 503, status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)

	loader.AssertExpectations(t)
}

func TestBreakerLoaderIgnoresDenials(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("LoadPrincipal", mock.Anything, "ghost").Return(nil, authz.NewFailure(authz.ReasonPrincipalNotFound, nil))

	bl := authz.NewBreakerLoader(loader, testBreakerSettings()).WithLogger(nopLogger{})

	for i := 0; i < 5; i++ {
		_, err := bl.LoadPrincipal(ctx, "ghost")
		assert.Equal(t, authz.ReasonPrincipalNotFound, authz.ReasonOf(err))
	}
	assert.Equal(t, gobreaker.StateClosed, bl.State())
}

func TestBreakerLoaderPassesThrough(t *testing.T) {
	p := newPrincipal()
	loader := authz.PrincipalLoaderFunc(func(context.Context, string) (*authz.Principal, error) {
		return p, nil
	})

	bl := authz.NewBreakerLoader(loader, authz.DefaultBreakerSettings(""))
	got, err := bl.LoadPrincipal(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestBreakerLoaderThroughAuthorizer(t *testing.T) {
	ctx := context.Background()
	p := newPrincipal()
	tokens := newTestTokens()
	token, err := tokens.Generate(p)
	require.NoError(t, err)

	loader := &MockLoader{}
	loader.On("LoadPrincipal", mock.Anything, p.ID.String()).Return(nil, errors.New("timeout"))

	bl := authz.NewBreakerLoader(loader, testBreakerSettings()).WithLogger(nopLogger{})
	a := authz.NewAuthorizer(tokens, bl).WithLogger(nopLogger{})

	_, err = a.Authenticate(ctx, bearer(token))
	assert.Equal(t, authz.ReasonInternal, authz.ReasonOf(err))
	_, err = a.Authenticate(ctx, bearer(token))
	assert.Equal(t, authz.ReasonInternal, authz.ReasonOf(err))

	_, err = a.Authenticate(ctx, bearer(token))
	assert.Equal(t, authz.ReasonUnavailable, authz.ReasonOf(err))
}

func TestNewBreakerLoaderPanics(t *testing.T) {
	assert.Panics(t, func() { authz.NewBreakerLoader(nil, gobreaker.Settings{}) })
}
