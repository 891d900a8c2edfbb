package main

import "github.com/goliatone/go-authz"

// product is a paid tool gated by plan, entitlement and monthly quota
type product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MinPlan   authz.Plan      `json:"min_plan"`
	UsageType authz.UsageType `json:"usage_type"`
}

var catalog = []product{
	{ID: "rewriter", Name: "Rewriter", MinPlan: authz.PlanFree, UsageType: authz.UsageRewrites},
	{ID: "content-studio", Name: "Content Studio", MinPlan: authz.PlanPro, UsageType: authz.UsageContentPieces},
	{ID: "bundle-builder", Name: "Bundle Builder", MinPlan: authz.PlanPro, UsageType: authz.UsageBundles},
	{ID: "lead-scorer", Name: "Lead Scorer", MinPlan: authz.PlanEnterprise, UsageType: authz.UsageLeadsScored},
}

// guards returns the chain protecting the product's run endpoint. The
// reservation goes last so denied requests do not consume quota.
func (p product) guards(recorder authz.UsageRecorder, limits authz.PlanLimits) []authz.Guard {
	return []authz.Guard{
		authz.RequireSubscription(p.MinPlan),
		authz.RequireEntitlement(p.ID),
		authz.ReserveUsageQuota(recorder, p.UsageType, limits),
	}
}
