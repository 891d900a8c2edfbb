package fiberauth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authz"
)

// Config for the fiber middleware
type Config struct {
	// Filter skips the middleware when it returns true
	Filter func(*fiber.Ctx) bool
	// ErrorHandler renders denials, defaults to the JSON envelope
	ErrorHandler func(*fiber.Ctx, error) error
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status, body := authz.Failure(err)
	return c.Status(status).JSON(body)
}

// New returns a fiber handler that authorizes the request. Denied requests
// get the error envelope and the chain stops.
func New(a *authz.Authorizer, guards ...authz.Guard) fiber.Handler {
	return NewWithConfig(a, Config{}, guards...)
}

// NewWithConfig is New with a custom Config
func NewWithConfig(a *authz.Authorizer, cfg Config, guards ...authz.Guard) fiber.Handler {
	if a == nil {
		panic("AUTHZ: fiber middleware configuration: Authorizer is required.")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	policy := authz.All(guards...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		p, err := a.Authorize(c.UserContext(), c.Get(fiber.HeaderAuthorization), policy)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		attach(c, a.ContextKey(), p)
		return c.Next()
	}
}

// Optional attaches the principal when the credential is valid and always
// continues the chain.
func Optional(a *authz.Authorizer) fiber.Handler {
	if a == nil {
		panic("AUTHZ: fiber middleware configuration: Authorizer is required.")
	}

	return func(c *fiber.Ctx) error {
		if p := a.AuthenticateOptional(c.UserContext(), c.Get(fiber.HeaderAuthorization)); p != nil {
			attach(c, a.ContextKey(), p)
		}
		return c.Next()
	}
}

// PrincipalFrom returns the principal stored by New or Optional
func PrincipalFrom(c *fiber.Ctx, key ...string) (*authz.Principal, bool) {
	k := authz.DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	p, ok := c.Locals(k).(*authz.Principal)
	if ok && p != nil {
		return p, true
	}
	return authz.PrincipalFromContext(c.UserContext())
}

func attach(c *fiber.Ctx, key string, p *authz.Principal) {
	c.Locals(key, p)
	c.SetUserContext(authz.WithPrincipal(c.UserContext(), p))
}
