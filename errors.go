package authz

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Reason identifies why a request was denied
type Reason string

const (
	ReasonMissingCredential    Reason = "missing_credential"
	ReasonInvalidCredential    Reason = "invalid_credential"
	ReasonPrincipalNotFound    Reason = "principal_not_found"
	ReasonRoleDenied           Reason = "role_denied"
	ReasonSubscriptionRequired Reason = "subscription_required"
	ReasonPlanUpgradeRequired  Reason = "plan_upgrade_required"
	ReasonEntitlementRequired  Reason = "entitlement_required"
	ReasonUsageLimitExceeded   Reason = "usage_limit_exceeded"
	ReasonInternal             Reason = "internal"
	ReasonUnavailable          Reason = "unavailable"
)

// Machine readable codes included in error envelopes
const (
	TextCodeUnauthorized         = "UNAUTHORIZED"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeEntitlementRequired  = "ENTITLEMENT_REQUIRED"
	TextCodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	TextCodePlanUpgradeRequired  = "PLAN_UPGRADE_REQUIRED"
	TextCodeUsageLimitExceeded   = "USAGE_LIMIT_EXCEEDED"
	TextCodeInternal             = "INTERNAL_ERROR"
	TextCodeUnavailable          = "SERVICE_UNAVAILABLE"
)

const metadataReasonKey = "reason"

// failures builds a fresh error per call so metadata never leaks between
// requests.
var failures = map[Reason]func() *goerrors.Error{
	ReasonMissingCredential: func() *goerrors.Error {
		return goerrors.New("authentication required", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(TextCodeUnauthorized)
	},
	ReasonInvalidCredential: func() *goerrors.Error {
		return goerrors.New("invalid or expired credentials", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(TextCodeUnauthorized)
	},
	// same message as invalid credentials, callers can not enumerate accounts
	ReasonPrincipalNotFound: func() *goerrors.Error {
		return goerrors.New("invalid or expired credentials", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(TextCodeUnauthorized)
	},
	ReasonRoleDenied: func() *goerrors.Error {
		return goerrors.New("insufficient role for this resource", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode(TextCodeForbidden)
	},
	ReasonSubscriptionRequired: func() *goerrors.Error {
		return goerrors.New("an active subscription is required", goerrors.CategoryAuthz).
			WithCode(http.StatusPaymentRequired).
			WithTextCode(TextCodeSubscriptionRequired)
	},
	ReasonPlanUpgradeRequired: func() *goerrors.Error {
		return goerrors.New("a higher subscription plan is required", goerrors.CategoryAuthz).
			WithCode(http.StatusPaymentRequired).
			WithTextCode(TextCodePlanUpgradeRequired)
	},
	ReasonEntitlementRequired: func() *goerrors.Error {
		return goerrors.New("product access has not been purchased", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).
			WithTextCode(TextCodeEntitlementRequired)
	},
	ReasonUsageLimitExceeded: func() *goerrors.Error {
		return goerrors.New("monthly usage limit reached", goerrors.CategoryRateLimit).
			WithCode(http.StatusTooManyRequests).
			WithTextCode(TextCodeUsageLimitExceeded)
	},
	ReasonInternal: func() *goerrors.Error {
		return goerrors.New("internal server error", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(TextCodeInternal)
	},
	ReasonUnavailable: func() *goerrors.Error {
		return goerrors.New("authorization backend unavailable", goerrors.CategoryInternal).
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(TextCodeUnavailable)
	},
}

// NewFailure returns the structured error for reason. Extra metadata is
// merged with the reason key.
func NewFailure(reason Reason, metadata map[string]any) *goerrors.Error {
	build, ok := failures[reason]
	if !ok {
		reason = ReasonInternal
		build = failures[ReasonInternal]
	}

	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md[metadataReasonKey] = string(reason)

	return build().WithMetadata(md)
}

// wrapInternal wraps store or transport errors so they render as 500s
func wrapInternal(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextCodeInternal).
		WithMetadata(map[string]any{
			metadataReasonKey: string(ReasonInternal),
			"cause":           err.Error(),
		})
}

// ReasonOf extracts the denial reason from err. Errors not produced by this
// package report ReasonInternal, nil reports an empty reason.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ReasonInternal
	}

	if r, ok := richErr.Metadata[metadataReasonKey].(string); ok {
		return Reason(r)
	}
	return ReasonInternal
}

// IsCredentialFailure reports whether err means the caller is not
// authenticated.
func IsCredentialFailure(err error) bool {
	switch ReasonOf(err) {
	case ReasonMissingCredential, ReasonInvalidCredential, ReasonPrincipalNotFound:
		return true
	default:
		return false
	}
}
