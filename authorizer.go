package authz

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// DefaultContextKey is the locals key the principal is stored under
const DefaultContextKey = "principal"

// Authorizer runs the request pipeline: verify the bearer token, load the
// principal, evaluate guards. It holds no per request state and is safe for
// concurrent use.
type Authorizer struct {
	tokens     TokenValidator
	loader     PrincipalLoader
	authScheme string
	contextKey string
	logger     Logger
	listeners  []DecisionListener
}

// NewAuthorizer creates an Authorizer. Both collaborators are required.
func NewAuthorizer(tokens TokenValidator, loader PrincipalLoader) *Authorizer {
	if tokens == nil {
		panic("AUTHZ: authorizer configuration: TokenValidator is required.")
	}
	if loader == nil {
		panic("AUTHZ: authorizer configuration: PrincipalLoader is required.")
	}

	return &Authorizer{
		tokens:     tokens,
		loader:     loader,
		authScheme: DefaultAuthScheme,
		contextKey: DefaultContextKey,
		logger:     defLogger{},
	}
}

func (a *Authorizer) WithLogger(l Logger) *Authorizer {
	if l != nil {
		a.logger = l
	}
	return a
}

// WithAuthScheme overrides the expected authorization header scheme
func (a *Authorizer) WithAuthScheme(scheme string) *Authorizer {
	if scheme != "" {
		a.authScheme = scheme
	}
	return a
}

// WithContextKey overrides the locals key used by the transport adapters
func (a *Authorizer) WithContextKey(key string) *Authorizer {
	if key != "" {
		a.contextKey = key
	}
	return a
}

// WithConfig applies the auth scheme and context key from cfg
func (a *Authorizer) WithConfig(cfg Config) *Authorizer {
	if cfg == nil {
		return a
	}
	return a.WithAuthScheme(cfg.GetAuthScheme()).WithContextKey(cfg.GetContextKey())
}

// WithDecisionListener registers listeners notified after every run
func (a *Authorizer) WithDecisionListener(listeners ...DecisionListener) *Authorizer {
	for _, l := range listeners {
		if l != nil {
			a.listeners = append(a.listeners, l)
		}
	}
	return a
}

// ContextKey returns the locals key the principal is stored under
func (a *Authorizer) ContextKey() string {
	return a.contextKey
}

// Authenticate verifies the credential in header and loads its principal
func (a *Authorizer) Authenticate(ctx context.Context, header string) (*Principal, error) {
	return a.run(ctx, header, nil, false)
}

// AuthenticateOptional is Authenticate for routes that also serve anonymous
// callers. Any failure yields a nil principal.
func (a *Authorizer) AuthenticateOptional(ctx context.Context, header string) *Principal {
	p, err := a.run(ctx, header, nil, true)
	if err != nil {
		return nil
	}
	return p
}

// Authorize runs the full pipeline with guards combined through All
func (a *Authorizer) Authorize(ctx context.Context, header string, guards ...Guard) (*Principal, error) {
	var policy Guard
	if len(guards) > 0 {
		policy = All(guards...)
	}
	return a.run(ctx, header, policy, false)
}

func (a *Authorizer) run(ctx context.Context, header string, policy Guard, optional bool) (*Principal, error) {
	start := time.Now()

	p, stage, err := a.evaluate(ctx, header, policy)

	d := Decision{
		ID:       newDecisionID(),
		Allowed:  err == nil,
		Optional: optional,
		Reason:   ReasonOf(err),
		Stage:    stage,
		Duration: time.Since(start),
	}
	if p != nil {
		d.PrincipalID = p.ID.String()
	}

	a.logDecision(d, err)
	a.emit(ctx, d)

	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Authorizer) evaluate(ctx context.Context, header string, policy Guard) (*Principal, Stage, error) {
	raw, err := ExtractBearer(header, a.authScheme)
	if err != nil {
		return nil, StageToken, err
	}

	claims, err := a.tokens.Validate(raw)
	if err != nil {
		if !IsCredentialFailure(err) {
			err = NewFailure(ReasonInvalidCredential, map[string]any{"cause": err.Error()})
		}
		return nil, StageToken, err
	}
	if claims == nil || claims.UserID() == "" {
		return nil, StageToken, NewFailure(ReasonInvalidCredential, map[string]any{"cause": "subject_missing"})
	}

	p, err := a.loader.LoadPrincipal(ctx, claims.UserID())
	if err != nil {
		return nil, StagePrincipal, ensureRich(err, "failed to load principal")
	}
	if p == nil {
		return nil, StagePrincipal, NewFailure(ReasonPrincipalNotFound, nil)
	}

	if policy != nil {
		if err := policy(ctx, p); err != nil {
			return p, StageGuard, ensureRich(err, "guard evaluation failed")
		}
	}

	return p, StageComplete, nil
}

func (a *Authorizer) logDecision(d Decision, err error) {
	if err == nil {
		a.logger.Debug("authorization granted id=%s principal=%s", d.ID, d.PrincipalID)
		return
	}

	var richErr *goerrors.Error
	details := ""
	if goerrors.As(err, &richErr) {
		details = print.MaybePrettyJSON(richErr.Metadata)
	}

	switch {
	case d.Reason == ReasonInternal || d.Reason == ReasonUnavailable:
		a.logger.Error("authorization failed id=%s stage=%s error=%s details=%s", d.ID, d.Stage, err, details)
	case d.Optional:
		a.logger.Debug("optional authentication skipped id=%s reason=%s", d.ID, d.Reason)
	default:
		a.logger.Info("authorization denied id=%s stage=%s reason=%s principal=%s details=%s",
			d.ID, d.Stage, d.Reason, d.PrincipalID, details)
	}
}

func (a *Authorizer) emit(ctx context.Context, d Decision) {
	for _, l := range a.listeners {
		a.notify(ctx, l, d)
	}
}

func (a *Authorizer) notify(ctx context.Context, l DecisionListener, d Decision) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("decision listener panicked id=%s: %v", d.ID, r)
		}
	}()
	l(ctx, d)
}

// ensureRich keeps errors produced by this package and wraps anything else
// as an internal failure.
func ensureRich(err error, message string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if _, ok := richErr.Metadata[metadataReasonKey]; ok {
			return err
		}
	}
	return wrapInternal(err, message)
}
