package authz

import "github.com/google/uuid"

// Subscription is the normalized billing state of a principal
type Subscription struct {
	Plan   Plan               `json:"plan"`
	Status SubscriptionStatus `json:"status"`
}

// IsActive reports whether the subscription is in ACTIVE status
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}

// Entitlement is a per product grant
type Entitlement struct {
	ProductID string            `json:"product_id"`
	Status    EntitlementStatus `json:"status"`
}

// Principal is the authenticated identity attached to a request. It is a
// read model: guards inspect it, nothing in the pipeline mutates it.
type Principal struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name,omitempty"`
	Role         Role          `json:"role"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Entitlements []Entitlement `json:"entitlements,omitempty"`
	Usage        Usage         `json:"usage,omitempty"`
}

// Plan returns the subscribed plan, empty when there is no subscription
func (p *Principal) Plan() Plan {
	if p == nil || p.Subscription == nil {
		return ""
	}
	return p.Subscription.Plan
}

// HasEntitlement reports whether an ACTIVE entitlement for productID exists
func (p *Principal) HasEntitlement(productID string) bool {
	if p == nil {
		return false
	}
	for _, e := range p.Entitlements {
		if e.ProductID == productID && e.Status == EntitlementActive {
			return true
		}
	}
	return false
}

// UsageCount returns the current period counter for usageType
func (p *Principal) UsageCount(usageType UsageType) int {
	if p == nil {
		return 0
	}
	return p.Usage.Count(usageType)
}
