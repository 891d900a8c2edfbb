package authz

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sony/gobreaker/v2"
)

// BreakerLoader guards a PrincipalLoader with a circuit breaker. While the
// breaker is open requests fail fast with ReasonUnavailable.
type BreakerLoader struct {
	next    PrincipalLoader
	breaker *gobreaker.CircuitBreaker[*Principal]
	logger  Logger
}

var _ PrincipalLoader = (*BreakerLoader)(nil)

// DefaultBreakerSettings trips after five consecutive store failures and
// allows a trial request again after thirty seconds.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// NewBreakerLoader wraps next. Denials produced by next (unknown principal
// and friends) are not counted as failures, only internal errors are.
func NewBreakerLoader(next PrincipalLoader, settings gobreaker.Settings) *BreakerLoader {
	if next == nil {
		panic("AUTHZ: breaker configuration: PrincipalLoader is required.")
	}

	l := &BreakerLoader{
		next:   next,
		logger: defLogger{},
	}

	if settings.Name == "" {
		settings.Name = "principal-loader"
	}

	isSuccessful := settings.IsSuccessful
	settings.IsSuccessful = func(err error) bool {
		if isSuccessful != nil && isSuccessful(err) {
			return true
		}
		if err == nil || goerrors.Is(err, context.Canceled) {
			return true
		}
		return ReasonOf(err) != ReasonInternal
	}

	onStateChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		l.logger.Info("circuit breaker state changed name=%s from=%s to=%s", name, from, to)
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}

	l.breaker = gobreaker.NewCircuitBreaker[*Principal](settings)
	return l
}

func (l *BreakerLoader) WithLogger(logger Logger) *BreakerLoader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// State returns the current breaker state
func (l *BreakerLoader) State() gobreaker.State {
	return l.breaker.State()
}

// LoadPrincipal delegates to the wrapped loader through the breaker
func (l *BreakerLoader) LoadPrincipal(ctx context.Context, id string) (*Principal, error) {
	p, err := l.breaker.Execute(func() (*Principal, error) {
		return l.next.LoadPrincipal(ctx, id)
	})
	if err != nil {
		if goerrors.Is(err, gobreaker.ErrOpenState) || goerrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, NewFailure(ReasonUnavailable, map[string]any{
				"breaker": l.breaker.Name(),
				"state":   l.breaker.State().String(),
			})
		}
		return nil, err
	}
	return p, nil
}
