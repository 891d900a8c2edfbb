package authz

import (
	"context"
	"fmt"
)

// Guard is an authorization predicate evaluated against a loaded principal.
// A nil error means the guard passed.
type Guard func(ctx context.Context, p *Principal) error

// All combines guards into their conjunction. Guards run in the given order
// and the first failure is returned. Nil guards are skipped, an empty chain
// passes.
func All(guards ...Guard) Guard {
	chain := make([]Guard, 0, len(guards))
	for _, g := range guards {
		if g != nil {
			chain = append(chain, g)
		}
	}

	return func(ctx context.Context, p *Principal) error {
		for _, g := range chain {
			if err := g(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}
}

// RequireRole passes when the principal holds role, or is SUPER_ADMIN
func RequireRole(role Role) Guard {
	return func(_ context.Context, p *Principal) error {
		if p != nil && p.Role.Satisfies(role) {
			return nil
		}
		return NewFailure(ReasonRoleDenied, map[string]any{
			"required_role": role.String(),
		})
	}
}

// RequireSubscription passes when the principal has an ACTIVE subscription
// whose plan ranks at least plan.
func RequireSubscription(plan Plan) Guard {
	return func(_ context.Context, p *Principal) error {
		if p == nil || !p.Subscription.IsActive() {
			return NewFailure(ReasonSubscriptionRequired, map[string]any{
				"required_plan": plan.String(),
			})
		}

		if !p.Subscription.Plan.AtLeast(plan) {
			return NewFailure(ReasonPlanUpgradeRequired, map[string]any{
				"required_plan": plan.String(),
				"current_plan":  p.Subscription.Plan.String(),
			})
		}
		return nil
	}
}

// RequireEntitlement passes when the principal holds an ACTIVE entitlement
// for productID, regardless of plan.
func RequireEntitlement(productID string) Guard {
	return func(_ context.Context, p *Principal) error {
		if p.HasEntitlement(productID) {
			return nil
		}
		return NewFailure(ReasonEntitlementRequired, map[string]any{
			"product_id": productID,
		})
	}
}

// RequireUsageLimit fails once the current period counter for usageType
// reaches limit. Unlimited always passes. The check reserves nothing, use
// ReserveUsage when concurrent requests must not overshoot.
func RequireUsageLimit(usageType UsageType, limit int) Guard {
	mustUsageType(usageType)
	return func(_ context.Context, p *Principal) error {
		return checkUsage(p, usageType, limit)
	}
}

// RequireUsageQuota is RequireUsageLimit with the limit resolved from the
// principal's plan.
func RequireUsageQuota(usageType UsageType, limits PlanLimits) Guard {
	mustUsageType(usageType)
	return func(_ context.Context, p *Principal) error {
		return checkUsage(p, usageType, limits.Limit(p.Plan(), usageType))
	}
}

// ReserveUsage atomically increments the principal's counter through
// recorder and fails when the limit is already reached. It consumes quota,
// so place it last in a chain.
func ReserveUsage(recorder UsageRecorder, usageType UsageType, limit int) Guard {
	mustUsageType(usageType)
	if recorder == nil {
		panic("AUTHZ: ReserveUsage requires a UsageRecorder")
	}
	return func(ctx context.Context, p *Principal) error {
		return reserve(ctx, recorder, p, usageType, limit)
	}
}

// ReserveUsageQuota is ReserveUsage with the limit resolved from the
// principal's plan.
func ReserveUsageQuota(recorder UsageRecorder, usageType UsageType, limits PlanLimits) Guard {
	mustUsageType(usageType)
	if recorder == nil {
		panic("AUTHZ: ReserveUsageQuota requires a UsageRecorder")
	}
	return func(ctx context.Context, p *Principal) error {
		return reserve(ctx, recorder, p, usageType, limits.Limit(p.Plan(), usageType))
	}
}

func checkUsage(p *Principal, usageType UsageType, limit int) error {
	if limit == Unlimited {
		return nil
	}
	current := p.UsageCount(usageType)
	if current >= limit {
		return usageExceeded(usageType, limit, current)
	}
	return nil
}

func reserve(ctx context.Context, recorder UsageRecorder, p *Principal, usageType UsageType, limit int) error {
	if p == nil {
		return usageExceeded(usageType, limit, 0)
	}
	if limit != Unlimited && limit <= 0 {
		return usageExceeded(usageType, limit, p.UsageCount(usageType))
	}

	ok, err := recorder.IncrementUsage(ctx, p.ID, usageType, limit)
	if err != nil {
		return wrapInternal(err, "failed to reserve usage")
	}
	if !ok {
		return usageExceeded(usageType, limit, p.UsageCount(usageType))
	}
	return nil
}

func usageExceeded(usageType UsageType, limit, current int) error {
	return NewFailure(ReasonUsageLimitExceeded, map[string]any{
		"usage_type": usageType.String(),
		"limit":      limit,
		"current":    current,
	})
}

func mustUsageType(usageType UsageType) {
	if !usageType.IsValid() {
		panic(fmt.Sprintf("AUTHZ: unknown usage type %q", usageType))
	}
}
