package authz

import (
	"strings"
	"unicode"
)

// DefaultAuthScheme is the expected prefix of the authorization header
const DefaultAuthScheme = "Bearer"

// ExtractBearer returns the token portion of an authorization header value.
// The scheme match is case-insensitive, any whitespace may separate it from
// the token, and the token must be non-empty.
func ExtractBearer(header, authScheme string) (string, error) {
	authScheme = strings.TrimSpace(authScheme)
	if authScheme == "" {
		authScheme = DefaultAuthScheme
	}

	header = strings.TrimSpace(header)
	l := len(authScheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], authScheme) || !unicode.IsSpace(rune(header[l])) {
		return "", NewFailure(ReasonMissingCredential, nil)
	}

	token := strings.TrimSpace(header[l:])
	if token == "" {
		return "", NewFailure(ReasonMissingCredential, nil)
	}
	return token, nil
}
