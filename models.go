package authz

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID            `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email         string               `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string               `bun:"display_name" json:"display_name,omitempty"`
	Role          string               `bun:"role,notnull" json:"role,omitempty"`
	Subscription  *SubscriptionRecord  `bun:"rel:has-one,join:id=user_id" json:"subscription,omitempty"`
	Entitlements  []*EntitlementRecord `bun:"rel:has-many,join:id=user_id" json:"entitlements,omitempty"`
	UsageCounters []*UsageCounter      `bun:"rel:has-many,join:id=user_id" json:"usage_counters,omitempty"`
	CreatedAt     *time.Time           `bun:"created_at,nullzero" json:"created_at,omitempty"`
	DeletedAt     *time.Time           `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// SubscriptionRecord is the billing row, one per user
type SubscriptionRecord struct {
	bun.BaseModel    `bun:"table:subscriptions,alias:sub"`
	ID               uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	UserID           uuid.UUID  `bun:"user_id,type:uuid,notnull,unique" json:"user_id,omitempty"`
	Plan             string     `bun:"plan,notnull" json:"plan,omitempty"`
	Status           string     `bun:"status,notnull" json:"status,omitempty"`
	CurrentPeriodEnd *time.Time `bun:"current_period_end,nullzero" json:"current_period_end,omitempty"`
}

// EntitlementRecord grants access to a single product
type EntitlementRecord struct {
	bun.BaseModel `bun:"table:entitlements,alias:ent"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user_id,omitempty"`
	ProductID     string    `bun:"product_id,notnull" json:"product_id,omitempty"`
	Status        string    `bun:"status,notnull" json:"status,omitempty"`
}

// UsageCounter is the count of one usage type for one user in one monthly
// period. (user_id, usage_type, period) is unique.
type UsageCounter struct {
	bun.BaseModel `bun:"table:usage_counters,alias:uc"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user_id,omitempty"`
	UsageType     string    `bun:"usage_type,notnull" json:"usage_type,omitempty"`
	Period        string    `bun:"period,notnull" json:"period,omitempty"`
	Used          int       `bun:"used,notnull" json:"used"`
}

// ToPrincipal normalizes the stored user into a Principal. Only counters
// of known usage types in period are kept.
func (u *User) ToPrincipal(period string) *Principal {
	if u == nil {
		return nil
	}

	role, ok := ParseRole(u.Role)
	if !ok {
		role = Role(u.Role)
	}

	p := &Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.DisplayName,
		Role:  role,
		Usage: Usage{},
	}

	if u.Subscription != nil {
		plan, _ := ParsePlan(u.Subscription.Plan)
		status, _ := ParseSubscriptionStatus(u.Subscription.Status)
		p.Subscription = &Subscription{
			Plan:   plan,
			Status: status,
		}
	}

	for _, e := range u.Entitlements {
		if e == nil {
			continue
		}
		p.Entitlements = append(p.Entitlements, Entitlement{
			ProductID: e.ProductID,
			Status:    EntitlementStatus(e.Status),
		})
	}

	for _, c := range u.UsageCounters {
		if c == nil || c.Period != period {
			continue
		}
		if t, ok := ParseUsageType(c.UsageType); ok {
			p.Usage[t] += c.Used
		}
	}

	return p
}
