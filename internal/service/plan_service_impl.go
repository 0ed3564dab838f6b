package service

import (
	"context"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/guard"
	"github.com/alexanderramin/atelier/internal/plan"
)

type planService struct {
	store    *plan.Store
	guard    guard.Authorizer
	resolver ShortIDResolver
	observer UseCaseObserver
}

// NewPlanService guards every store mutation with authz. resolver may be nil.
func NewPlanService(store *plan.Store, authz guard.Authorizer, resolver ShortIDResolver, observers ...UseCaseObserver) *planService {
	return &planService{
		store:    store,
		guard:    authz,
		resolver: resolver,
		observer: useCaseObserverOrNoop(observers),
	}
}

// target resolves ref and entityID against the current plan. Unknown
// entities surface as NotFound before any policy is consulted.
func (s *planService) target(ctx context.Context, ref, entityID string) (*domain.ProjectPlan, guard.Target, error) {
	p, err := resolvePlan(ctx, s.store, s.resolver, ref)
	if err != nil {
		return nil, guard.Target{}, err
	}
	t, err := targetIn(p, entityID)
	if err != nil {
		return nil, guard.Target{}, err
	}
	return p, t, nil
}

// targetIn locates entityID in p. An empty id or the project id targets the
// plan itself.
func targetIn(p *domain.ProjectPlan, entityID string) (guard.Target, error) {
	if entityID == "" || entityID == p.ProjectID {
		return guard.Target{Kind: domain.EntityPlan, ID: p.ProjectID, ProjectID: p.ProjectID}, nil
	}
	if p.FindStage(entityID) >= 0 {
		return guard.Target{Kind: domain.EntityStage, ID: entityID, ProjectID: p.ProjectID}, nil
	}
	if si, ti := p.FindTask(entityID); si >= 0 {
		t := p.Stages[si].Tasks[ti]
		return guard.Target{Kind: domain.EntityTask, ID: entityID, ProjectID: p.ProjectID, Assignee: t.AssigneeOrEmpty()}, nil
	}
	return guard.Target{}, &domain.NotFoundError{Kind: domain.EntityTask, ID: entityID}
}

// recheck authorizes again inside the store's write, against the plan it is
// about to change. The first check runs on a snapshot; this one sees any
// reassignment that landed in between.
func (s *planService) recheck(actor guard.Actor, entityID string, stageOp, taskOp guard.Operation) plan.Check {
	return func(ctx context.Context, p *domain.ProjectPlan) error {
		t, err := targetIn(p, entityID)
		if err != nil {
			return err
		}
		op := stageOp
		if t.Kind == domain.EntityTask {
			op = taskOp
		}
		return guard.Require(ctx, s.guard, actor, op, t)
	}
}

// authorize picks the stage or task flavour of an operation from the target.
func (s *planService) authorize(ctx context.Context, actor guard.Actor, t guard.Target, stageOp, taskOp guard.Operation) error {
	op := stageOp
	if t.Kind == domain.EntityTask {
		op = taskOp
	}
	return guard.Require(ctx, s.guard, actor, op, t)
}

func (s *planService) CreateStage(ctx context.Context, actor guard.Actor, ref, label string, at *int) (st domain.Stage, err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref}
	done := observe(ctx, s.observer, "create-stage", fields)
	defer func() { done(err) }()

	p, t, err := s.target(ctx, ref, "")
	if err != nil {
		return domain.Stage{}, err
	}
	if err := guard.Require(ctx, s.guard, actor, guard.OpStageCreate, t); err != nil {
		return domain.Stage{}, err
	}
	return s.store.CreateStage(ctx, actor.ID, p.ProjectID, label, at,
		s.recheck(actor, "", guard.OpStageCreate, guard.OpStageCreate))
}

func (s *planService) CreateTask(ctx context.Context, actor guard.Actor, ref, stageID, label string, at *int, opts plan.TaskOptions) (task domain.Task, err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "stage_id": stageID}
	done := observe(ctx, s.observer, "create-task", fields)
	defer func() { done(err) }()

	p, t, err := s.target(ctx, ref, stageID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Kind != domain.EntityStage {
		return domain.Task{}, &domain.NotFoundError{Kind: domain.EntityStage, ID: stageID}
	}
	if err := guard.Require(ctx, s.guard, actor, guard.OpTaskCreate, t); err != nil {
		return domain.Task{}, err
	}
	return s.store.CreateTask(ctx, actor.ID, p.ProjectID, stageID, label, at, opts,
		s.recheck(actor, stageID, guard.OpTaskCreate, guard.OpTaskCreate))
}

func (s *planService) UpdateStatus(ctx context.Context, actor guard.Actor, ref, entityID, status string) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "entity_id": entityID, "status": status}
	done := observe(ctx, s.observer, "update-status", fields)
	defer func() { done(err) }()

	p, t, err := s.entityTarget(ctx, ref, entityID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, t, guard.OpStageStatus, guard.OpTaskStatus); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, actor.ID, p.ProjectID, entityID, status,
		s.recheck(actor, entityID, guard.OpStageStatus, guard.OpTaskStatus))
}

func (s *planService) Reopen(ctx context.Context, actor guard.Actor, ref, entityID string) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "entity_id": entityID}
	done := observe(ctx, s.observer, "reopen", fields)
	defer func() { done(err) }()

	p, t, err := s.entityTarget(ctx, ref, entityID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, t, guard.OpStageReopen, guard.OpTaskReopen); err != nil {
		return err
	}
	return s.store.Reopen(ctx, actor.ID, p.ProjectID, entityID,
		s.recheck(actor, entityID, guard.OpStageReopen, guard.OpTaskReopen))
}

func (s *planService) UpdateFields(ctx context.Context, actor guard.Actor, ref, entityID string, patch plan.FieldPatch) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "entity_id": entityID}
	done := observe(ctx, s.observer, "update-fields", fields)
	defer func() { done(err) }()

	p, t, err := s.entityTarget(ctx, ref, entityID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, t, guard.OpStageUpdate, guard.OpTaskUpdate); err != nil {
		return err
	}
	return s.store.UpdateFields(ctx, actor.ID, p.ProjectID, entityID, patch,
		s.recheck(actor, entityID, guard.OpStageUpdate, guard.OpTaskUpdate))
}

// Reorder with a nil stageID reorders stages; otherwise the tasks of that stage.
func (s *planService) Reorder(ctx context.Context, actor guard.Actor, ref string, stageID *string, orderedIDs []string) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "count": len(orderedIDs)}
	done := observe(ctx, s.observer, "reorder", fields)
	defer func() { done(err) }()

	op := guard.OpStageReorder
	entityID := ""
	if stageID != nil {
		op = guard.OpTaskReorder
		entityID = *stageID
		fields["stage_id"] = entityID
	}
	p, t, err := s.target(ctx, ref, entityID)
	if err != nil {
		return err
	}
	if stageID != nil && t.Kind != domain.EntityStage {
		return &domain.NotFoundError{Kind: domain.EntityStage, ID: entityID}
	}
	if err := guard.Require(ctx, s.guard, actor, op, t); err != nil {
		return err
	}
	return s.store.Reorder(ctx, actor.ID, p.ProjectID, stageID, orderedIDs,
		s.recheck(actor, entityID, op, op))
}

func (s *planService) DeleteStage(ctx context.Context, actor guard.Actor, ref, stageID string) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "stage_id": stageID}
	done := observe(ctx, s.observer, "delete-stage", fields)
	defer func() { done(err) }()

	p, t, err := s.entityTarget(ctx, ref, stageID)
	if err != nil {
		return err
	}
	if t.Kind != domain.EntityStage {
		return &domain.NotFoundError{Kind: domain.EntityStage, ID: stageID}
	}
	if err := guard.Require(ctx, s.guard, actor, guard.OpStageDelete, t); err != nil {
		return err
	}
	return s.store.DeleteStage(ctx, actor.ID, p.ProjectID, stageID,
		s.recheck(actor, stageID, guard.OpStageDelete, guard.OpStageDelete))
}

func (s *planService) DeleteTask(ctx context.Context, actor guard.Actor, ref, taskID string) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref, "task_id": taskID}
	done := observe(ctx, s.observer, "delete-task", fields)
	defer func() { done(err) }()

	p, t, err := s.entityTarget(ctx, ref, taskID)
	if err != nil {
		return err
	}
	if t.Kind != domain.EntityTask {
		return &domain.NotFoundError{Kind: domain.EntityTask, ID: taskID}
	}
	if err := guard.Require(ctx, s.guard, actor, guard.OpTaskDelete, t); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, actor.ID, p.ProjectID, taskID,
		s.recheck(actor, taskID, guard.OpTaskDelete, guard.OpTaskDelete))
}

// entityTarget is target restricted to stages and tasks.
func (s *planService) entityTarget(ctx context.Context, ref, entityID string) (*domain.ProjectPlan, guard.Target, error) {
	p, t, err := s.target(ctx, ref, entityID)
	if err != nil {
		return nil, guard.Target{}, err
	}
	if t.Kind == domain.EntityPlan {
		return nil, guard.Target{}, &domain.NotFoundError{Kind: domain.EntityTask, ID: entityID}
	}
	return p, t, nil
}
