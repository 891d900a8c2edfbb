package authz

import (
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultSigningMethod is used when no signing method is configured
const DefaultSigningMethod = "HS256"

// TokenService signs and verifies HMAC bearer tokens
type TokenService struct {
	signingKey      []byte
	signingMethod   jwt.SigningMethod
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	keyID           string
	rotatedKeys     map[string][]byte
	keySet          *keyfunc.JWKS
	logger          Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithSigningMethod selects the HMAC algorithm (HS256, HS384 or HS512).
// Unknown or non HMAC names are ignored.
func WithSigningMethod(name string) TokenServiceOption {
	return func(ts *TokenService) {
		if m, ok := jwt.GetSigningMethod(strings.ToUpper(name)).(*jwt.SigningMethodHMAC); ok {
			ts.signingMethod = m
		}
	}
}

// WithKeyID stamps issued tokens with a kid header. Verification of tokens
// carrying that kid uses the primary signing key.
func WithKeyID(kid string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.keyID = kid
	}
}

// WithRotatedKeys registers extra verification keys addressed by kid, so
// tokens signed before a key rotation keep validating.
func WithRotatedKeys(keys map[string][]byte) TokenServiceOption {
	return func(ts *TokenService) {
		if ts.rotatedKeys == nil {
			ts.rotatedKeys = make(map[string][]byte, len(keys))
		}
		for kid, key := range keys {
			ts.rotatedKeys[kid] = key
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// expressed in hours.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience []string, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey:      signingKey,
		signingMethod:   jwt.SigningMethodHS256,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	if ts.keyID != "" || len(ts.rotatedKeys) > 0 {
		givenKeys := make(map[string]keyfunc.GivenKey, len(ts.rotatedKeys)+1)
		for kid, key := range ts.rotatedKeys {
			givenKeys[kid] = keyfunc.NewGivenCustom(key, keyfunc.GivenKeyOptions{
				Algorithm: ts.signingMethod.Alg(),
			})
		}
		if ts.keyID != "" {
			givenKeys[ts.keyID] = keyfunc.NewGivenCustom(ts.signingKey, keyfunc.GivenKeyOptions{
				Algorithm: ts.signingMethod.Alg(),
			})
		}
		ts.keySet = keyfunc.NewGiven(givenKeys)
	}

	return ts
}

// NewTokenServiceFromConfig builds a TokenService from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	if cfg == nil {
		return nil, goerrors.New("config is required", goerrors.CategoryBadInput)
	}

	if strings.TrimSpace(cfg.GetSigningKey()) == "" {
		return nil, goerrors.New("signing key is required", goerrors.CategoryBadInput)
	}

	method := cfg.GetSigningMethod()
	if method == "" {
		method = DefaultSigningMethod
	}
	if _, ok := jwt.GetSigningMethod(strings.ToUpper(method)).(*jwt.SigningMethodHMAC); !ok {
		return nil, goerrors.New(fmt.Sprintf("unsupported signing method: %s", method), goerrors.CategoryBadInput)
	}

	all := append([]TokenServiceOption{WithSigningMethod(method)}, opts...)
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		all...,
	), nil
}

// Generate issues a token for the principal using the configured expiration
func (ts *TokenService) Generate(p *Principal) (string, error) {
	return ts.GenerateWithTTL(p, time.Duration(ts.tokenExpiration)*time.Hour)
}

// GenerateWithTTL issues a token for the principal valid for ttl
func (ts *TokenService) GenerateWithTTL(p *Principal, ttl time.Duration) (string, error) {
	if p == nil || p.ID == uuid.Nil {
		return "", goerrors.New("principal with an id is required", goerrors.CategoryBadInput)
	}
	if ttl <= 0 {
		return "", goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   p.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PrincipalID: p.ID.String(),
		IssuedRole:  p.Role.String(),
		Email:       p.Email,
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims with the primary key
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.signingMethod, claims)
	if ts.keyID != "" {
		token.Header["kid"] = ts.keyID
	}

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Validate verifies signature, expiry, issuer and audience. Every
// verification error is reported as ReasonInvalidCredential.
func (ts *TokenService) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ts.keyFunc, parserOptions...)
	if err != nil {
		cause := "malformed"
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			cause = "expired"
		}
		ts.logger.Debug("token validation failed: %s", err)
		return nil, NewFailure(ReasonInvalidCredential, map[string]any{"cause": cause})
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, NewFailure(ReasonInvalidCredential, map[string]any{"cause": "malformed"})
	}

	if strings.TrimSpace(claims.UserID()) == "" {
		return nil, NewFailure(ReasonInvalidCredential, map[string]any{"cause": "subject_missing"})
	}

	return claims, nil
}

func (ts *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}

	if kid, ok := t.Header["kid"].(string); ok && kid != "" {
		if ts.keySet == nil {
			return nil, fmt.Errorf("unknown key id: %s", kid)
		}
		return ts.keySet.Keyfunc(t)
	}

	return ts.signingKey, nil
}
