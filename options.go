package authz

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Options is a plain Config implementation
type Options struct {
	SigningKey      string   `koanf:"signing_key" json:"signing_key"`
	SigningMethod   string   `koanf:"signing_method" json:"signing_method"`
	TokenExpiration int      `koanf:"token_expiration" json:"token_expiration"`
	Issuer          string   `koanf:"issuer" json:"issuer"`
	Audience        []string `koanf:"audience" json:"audience"`
	AuthScheme      string   `koanf:"auth_scheme" json:"auth_scheme"`
	ContextKey      string   `koanf:"context_key" json:"context_key"`
}

var _ Config = Options{}

// DefaultOptions returns Options with every field but the signing key set
func DefaultOptions() Options {
	return Options{
		SigningMethod:   DefaultSigningMethod,
		TokenExpiration: 24,
		Issuer:          "go-authz",
		AuthScheme:      DefaultAuthScheme,
		ContextKey:      DefaultContextKey,
	}
}

// Validate checks the options before they are used to build a TokenService
func (o Options) Validate() error {
	o.SigningMethod = strings.ToUpper(strings.TrimSpace(o.SigningMethod))
	return validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&o.SigningMethod, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&o.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&o.AuthScheme, validation.Length(1, 32)),
	)
}

func (o Options) GetSigningKey() string {
	return o.SigningKey
}

func (o Options) GetSigningMethod() string {
	if o.SigningMethod == "" {
		return DefaultSigningMethod
	}
	return strings.ToUpper(o.SigningMethod)
}

func (o Options) GetTokenExpiration() int {
	return o.TokenExpiration
}

func (o Options) GetIssuer() string {
	return o.Issuer
}

func (o Options) GetAudience() []string {
	return o.Audience
}

func (o Options) GetAuthScheme() string {
	if o.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return o.AuthScheme
}

func (o Options) GetContextKey() string {
	if o.ContextKey == "" {
		return DefaultContextKey
	}
	return o.ContextKey
}
