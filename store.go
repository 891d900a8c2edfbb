package authz

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const incrementUsageSQL = `INSERT INTO "usage_counters" ("id", "user_id", "usage_type", "period", "used")
VALUES (?, ?, ?, ?, 1)
ON CONFLICT ("user_id", "usage_type", "period")
DO UPDATE SET "used" = "usage_counters"."used" + 1`

const incrementUsageLimitSQL = incrementUsageSQL + `
WHERE "usage_counters"."used" < ?`

// PrincipalStore loads principals and maintains usage counters in a bun
// database. It reads fresh state on every call.
type PrincipalStore struct {
	db    *bun.DB
	users repository.Repository[*User]
	now   func() time.Time
}

var (
	_ PrincipalLoader = (*PrincipalStore)(nil)
	_ UsageRecorder   = (*PrincipalStore)(nil)
)

// PrincipalStoreOption configures a PrincipalStore
type PrincipalStoreOption func(*PrincipalStore)

// WithStoreClock overrides the clock used to pick the usage period
func WithStoreClock(now func() time.Time) PrincipalStoreOption {
	return func(s *PrincipalStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewUsersRepository returns the repository used to read users
func NewUsersRepository(db *bun.DB) repository.Repository[*User] {
	return repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

// NewPrincipalStore creates a store over db
func NewPrincipalStore(db *bun.DB, opts ...PrincipalStoreOption) *PrincipalStore {
	s := &PrincipalStore{
		db:    db,
		users: NewUsersRepository(db),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// LoadPrincipal reads the user with subscription, entitlements and current
// period counters. Unknown, deleted and non UUID ids are not found.
func (s *PrincipalStore) LoadPrincipal(ctx context.Context, id string) (*Principal, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, NewFailure(ReasonPrincipalNotFound, nil)
	}

	period := UsagePeriod(s.now())

	user, err := s.users.GetByID(ctx, uid.String(), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Relation("Subscription").
			Relation("Entitlements").
			Relation("UsageCounters", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("uc.period = ?", period)
			})
	})
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.Is(err, sql.ErrNoRows) {
			return nil, NewFailure(ReasonPrincipalNotFound, nil)
		}
		return nil, wrapInternal(err, "failed to load principal")
	}

	if user == nil {
		return nil, NewFailure(ReasonPrincipalNotFound, nil)
	}

	return user.ToPrincipal(period), nil
}

// FindUser looks a user up by id when identifier is a UUID, by email
// otherwise.
func (s *PrincipalStore) FindUser(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)

	column, value := "email", strings.ToLower(identifier)
	if uid, err := uuid.Parse(identifier); err == nil {
		column, value = "id", uid.String()
	}

	record := &User{}
	err := s.db.NewSelect().
		Model(record).
		Relation("Subscription").
		Relation("Entitlements").
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": identifier,
				})
		}
		return nil, err
	}
	return record, nil
}

// IncrementUsage bumps the current period counter in a single conditional
// upsert. With a limit other than Unlimited the row is only updated while
// it is below limit, so concurrent callers can not overshoot.
func (s *PrincipalStore) IncrementUsage(ctx context.Context, principalID uuid.UUID, usageType UsageType, limit int) (bool, error) {
	if !usageType.IsValid() {
		return false, unknownUsageType(usageType)
	}
	if limit != Unlimited && limit <= 0 {
		return false, nil
	}

	period := UsagePeriod(s.now())

	var (
		res sql.Result
		err error
	)
	if limit == Unlimited {
		res, err = s.db.NewRaw(incrementUsageSQL,
			uuid.NewString(), principalID.String(), usageType.String(), period,
		).Exec(ctx)
	} else {
		res, err = s.db.NewRaw(incrementUsageLimitSQL,
			uuid.NewString(), principalID.String(), usageType.String(), period, limit,
		).Exec(ctx)
	}
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CurrentUsage returns the counters of the current period
func (s *PrincipalStore) CurrentUsage(ctx context.Context, principalID uuid.UUID) (Usage, error) {
	var counters []*UsageCounter
	err := s.db.NewSelect().
		Model(&counters).
		Where("uc.user_id = ?", principalID.String()).
		Where("uc.period = ?", UsagePeriod(s.now())).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	usage := Usage{}
	for _, c := range counters {
		if t, ok := ParseUsageType(c.UsageType); ok {
			usage[t] += c.Used
		}
	}
	return usage, nil
}

// CreateSchema creates the tables the store reads when they do not exist
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*SubscriptionRecord)(nil),
		(*EntitlementRecord)(nil),
		(*UsageCounter)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	_, err := db.NewCreateIndex().
		Model((*UsageCounter)(nil)).
		Index("uq_usage_counters_user_type_period").
		Unique().
		IfNotExists().
		Column("user_id", "usage_type", "period").
		Exec(ctx)
	return err
}
