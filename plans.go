package authz

import "strings"

// Plan is a subscription tier
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// Rank returns the position of the plan in the tier order. Unknown plans
// rank below FREE.
func (p Plan) Rank() int {
	switch p {
	case PlanFree:
		return 0
	case PlanPro:
		return 1
	case PlanEnterprise:
		return 2
	default:
		return -1
	}
}

// IsValid checks if the plan is a known tier
func (p Plan) IsValid() bool {
	return p.Rank() >= 0
}

// AtLeast reports whether p ranks at or above minPlan. Unknown plans on
// either side never satisfy the comparison.
func (p Plan) AtLeast(minPlan Plan) bool {
	if !p.IsValid() || !minPlan.IsValid() {
		return false
	}
	return p.Rank() >= minPlan.Rank()
}

func (p Plan) String() string {
	return string(p)
}

// GetAllPlans returns the plans in ascending order
func GetAllPlans() []Plan {
	return []Plan{PlanFree, PlanPro, PlanEnterprise}
}

// ParsePlan parses a stored plan string.
func ParsePlan(planStr string) (Plan, bool) {
	plan := Plan(strings.ToUpper(strings.TrimSpace(planStr)))
	return plan, plan.IsValid()
}

// SubscriptionStatus is the billing state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionUnpaid    SubscriptionStatus = "UNPAID"
	SubscriptionTrial     SubscriptionStatus = "TRIAL"
)

// IsValid checks if the status is one of the known states
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionCancelled, SubscriptionPastDue, SubscriptionUnpaid, SubscriptionTrial:
		return true
	default:
		return false
	}
}

// ParseSubscriptionStatus parses a stored status string.
func ParseSubscriptionStatus(statusStr string) (SubscriptionStatus, bool) {
	status := SubscriptionStatus(strings.ToUpper(strings.TrimSpace(statusStr)))
	return status, status.IsValid()
}

// EntitlementStatus is the state of a per product grant
type EntitlementStatus string

const (
	EntitlementActive  EntitlementStatus = "ACTIVE"
	EntitlementRevoked EntitlementStatus = "REVOKED"
	EntitlementExpired EntitlementStatus = "EXPIRED"
)
