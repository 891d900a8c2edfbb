package authz

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UsageType identifies a metered feature
type UsageType string

const (
	UsageRewrites       UsageType = "rewrites"
	UsageContentPieces  UsageType = "content_pieces"
	UsageBundles        UsageType = "bundles"
	UsageAffiliateLinks UsageType = "affiliate_links"
	UsageAIRequests     UsageType = "ai_requests"
	UsageLeadsScored    UsageType = "leads_scored"
	UsageTimeEntries    UsageType = "time_entries"
)

// Unlimited is the limit value that always passes usage checks
const Unlimited = -1

// usagePeriodLayout buckets counters by calendar month
const usagePeriodLayout = "2006-01"

// IsValid checks if the usage type is known
func (t UsageType) IsValid() bool {
	switch t {
	case UsageRewrites,
		UsageContentPieces,
		UsageBundles,
		UsageAffiliateLinks,
		UsageAIRequests,
		UsageLeadsScored,
		UsageTimeEntries:
		return true
	default:
		return false
	}
}

func (t UsageType) String() string {
	return string(t)
}

// GetAllUsageTypes returns every metered feature
func GetAllUsageTypes() []UsageType {
	return []UsageType{
		UsageRewrites,
		UsageContentPieces,
		UsageBundles,
		UsageAffiliateLinks,
		UsageAIRequests,
		UsageLeadsScored,
		UsageTimeEntries,
	}
}

// ParseUsageType parses a stored usage type
func ParseUsageType(s string) (UsageType, bool) {
	t := UsageType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.IsValid()
}

func unknownUsageType(t UsageType) error {
	return goerrors.New("unknown usage type: "+t.String(), goerrors.CategoryBadInput).
		WithMetadata(map[string]any{"usage_type": t.String()})
}

// UsagePeriod returns the monthly bucket a timestamp falls into
func UsagePeriod(t time.Time) string {
	return t.UTC().Format(usagePeriodLayout)
}

// Usage holds the current period counters of a principal
type Usage map[UsageType]int

// Count returns the counter for t, zero when absent
func (u Usage) Count(t UsageType) int {
	if u == nil {
		return 0
	}
	return u[t]
}

// PlanLimits maps a plan to its monthly limit per usage type
type PlanLimits map[Plan]map[UsageType]int

// Limit returns the limit for usageType under plan. Missing entries resolve
// to zero so unknown plans get nothing.
func (l PlanLimits) Limit(plan Plan, usageType UsageType) int {
	limits, ok := l[plan]
	if !ok {
		return 0
	}
	limit, ok := limits[usageType]
	if !ok {
		return 0
	}
	return limit
}

// DefaultPlanLimits returns the stock quota table
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		PlanFree: {
			UsageRewrites:       20,
			UsageContentPieces:  10,
			UsageBundles:        3,
			UsageAffiliateLinks: 5,
			UsageAIRequests:     50,
			UsageLeadsScored:    25,
			UsageTimeEntries:    100,
		},
		PlanPro: {
			UsageRewrites:       500,
			UsageContentPieces:  250,
			UsageBundles:        50,
			UsageAffiliateLinks: 100,
			UsageAIRequests:     2000,
			UsageLeadsScored:    1000,
			UsageTimeEntries:    Unlimited,
		},
		PlanEnterprise: {
			UsageRewrites:       Unlimited,
			UsageContentPieces:  Unlimited,
			UsageBundles:        Unlimited,
			UsageAffiliateLinks: Unlimited,
			UsageAIRequests:     Unlimited,
			UsageLeadsScored:    Unlimited,
			UsageTimeEntries:    Unlimited,
		},
	}
}
