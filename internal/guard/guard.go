// Package guard decides whether an actor may perform a plan operation.
// Decisions come from Rego policies evaluated locally by OPA.
package guard

import (
	"context"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
)

// Operation names a guarded plan write.
type Operation string

const (
	OpPlanMaterialize Operation = "plan.materialize"
	OpPlanReplace     Operation = "plan.replace"
	OpPlanArchive     Operation = "plan.archive"
	OpStageCreate     Operation = "stage.create"
	OpStageUpdate     Operation = "stage.update"
	OpStageStatus     Operation = "stage.status"
	OpStageReopen     Operation = "stage.reopen"
	OpStageReorder    Operation = "stage.reorder"
	OpStageDelete     Operation = "stage.delete"
	OpTaskCreate      Operation = "task.create"
	OpTaskUpdate      Operation = "task.update"
	OpTaskStatus      Operation = "task.status"
	OpTaskReopen      Operation = "task.reopen"
	OpTaskReorder     Operation = "task.reorder"
	OpTaskDelete      Operation = "task.delete"
)

// Operations lists every guarded operation.
var Operations = []Operation{
	OpPlanMaterialize, OpPlanReplace, OpPlanArchive,
	OpStageCreate, OpStageUpdate, OpStageStatus, OpStageReopen, OpStageReorder, OpStageDelete,
	OpTaskCreate, OpTaskUpdate, OpTaskStatus, OpTaskReopen, OpTaskReorder, OpTaskDelete,
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	for _, known := range Operations {
		if o == known {
			return true
		}
	}
	return false
}

// Roles understood by the default policy.
const (
	RoleOwner       = "owner"
	RoleManager     = "manager"
	RoleArchitect   = "architect"
	RoleContributor = "contributor"
	RoleViewer      = "viewer"
)

// Actor is whoever asks for an operation.
type Actor struct {
	ID           string
	Roles        []string
	Capabilities []Operation
}

// Target is the entity an operation acts on. Assignee is only meaningful
// for tasks.
type Target struct {
	Kind      domain.EntityKind
	ID        string
	ProjectID string
	Assignee  string
}

// Decision is the outcome of one authorization.
type Decision struct {
	ID          string
	Allowed     bool
	Reasons     []string
	EvaluatedAt time.Time
}

// Authorizer is implemented by Engine.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, op Operation, target Target) (Decision, error)
}

// Require authorizes op and turns a denial into a *domain.PermissionDeniedError.
func Require(ctx context.Context, a Authorizer, actor Actor, op Operation, target Target) error {
	d, err := a.Authorize(ctx, actor, op, target)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &domain.PermissionDeniedError{ActorID: actor.ID, Operation: string(op), Reasons: d.Reasons}
	}
	return nil
}
