package authz

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Stage is the pipeline step a decision was reached at
type Stage string

const (
	StageToken     Stage = "token"
	StagePrincipal Stage = "principal"
	StageGuard     Stage = "guard"
	StageComplete  Stage = "complete"
)

// Decision describes the outcome of one pipeline run
type Decision struct {
	ID          string
	PrincipalID string
	Allowed     bool
	Optional    bool
	Reason      Reason
	Stage       Stage
	Duration    time.Duration
}

// DecisionListener observes decisions. Listeners run synchronously after the
// outcome is fixed and can not change it.
type DecisionListener func(ctx context.Context, d Decision)

func newDecisionID() string {
	return ulid.Make().String()
}
