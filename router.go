package authz

import "github.com/goliatone/go-router"

// AuthenticatedHandler is a handler that receives the authorized principal.
// Handlers wrapped with WrapOptional receive nil for anonymous callers.
type AuthenticatedHandler func(c router.Context, p *Principal) error

// Wrap returns a handler that authorizes the request before invoking h.
// Denials write an error envelope and h is not called; otherwise h's result
// is returned unchanged.
func (a *Authorizer) Wrap(h AuthenticatedHandler, guards ...Guard) router.HandlerFunc {
	policy := All(guards...)
	return func(c router.Context) error {
		p, err := a.Authorize(c.Context(), c.GetString(router.HeaderAuthorization, ""), policy)
		if err != nil {
			return a.respondError(c, err)
		}
		a.attach(c, p)
		return h(c, p)
	}
}

// WrapOptional returns a handler that attaches the principal when the
// credential is valid and never denies the request.
func (a *Authorizer) WrapOptional(h AuthenticatedHandler) router.HandlerFunc {
	return func(c router.Context) error {
		p := a.AuthenticateOptional(c.Context(), c.GetString(router.HeaderAuthorization, ""))
		if p != nil {
			a.attach(c, p)
		}
		return h(c, p)
	}
}

// Protect is the middleware form of Wrap
func (a *Authorizer) Protect(guards ...Guard) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return a.Wrap(func(c router.Context, _ *Principal) error {
			return next(c)
		}, guards...)
	}
}

// Optional is the middleware form of WrapOptional
func (a *Authorizer) Optional() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return a.WrapOptional(func(c router.Context, _ *Principal) error {
			return next(c)
		})
	}
}

// GetRouterPrincipal extracts the principal stored by Wrap from the router
// context
func GetRouterPrincipal(c router.Context, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	p, ok := raw.(*Principal)
	return p, ok && p != nil
}

func (a *Authorizer) attach(c router.Context, p *Principal) {
	c.Locals(a.contextKey, p)
	c.SetContext(WithPrincipal(c.Context(), p))
}

func (a *Authorizer) respondError(c router.Context, err error) error {
	status, body := Failure(err)
	return c.JSON(status, body)
}
