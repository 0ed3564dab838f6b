package plan

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
)

// TaskOptions are the optional fields of a new task.
type TaskOptions struct {
	Assignee       *string
	DueDate        *time.Time
	EstimatedHours float64
}

// FieldPatch is a partial update. Nil fields are left alone. An empty
// Assignee clears the assignment; ClearDueDate removes the due date.
// Stages only accept Label.
type FieldPatch struct {
	Label          *string
	Assignee       *string
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatedHours *float64
}

// IsEmpty reports whether the patch names no field at all.
func (fp FieldPatch) IsEmpty() bool {
	return fp.Label == nil && fp.Assignee == nil && fp.DueDate == nil && !fp.ClearDueDate && fp.EstimatedHours == nil
}

// CreateStage inserts a stage at position at, or appends when at is nil.
func (s *Store) CreateStage(ctx context.Context, actorID, projectID, label string, at *int, checks ...Check) (domain.Stage, error) {
	label = strings.TrimSpace(label)
	if err := domain.ValidateLabel(label); err != nil {
		return domain.Stage{}, err
	}

	var created domain.Stage
	err := s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		pos, err := insertPosition(at, len(p.Stages))
		if err != nil {
			return nil, err
		}
		st := domain.Stage{
			ID:        s.newID(),
			ProjectID: p.ProjectID,
			Label:     label,
			Status:    domain.StageNotStarted,
			Tasks:     []domain.Task{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		p.Stages = insertAt(p.Stages, pos, st)
		p.Stages[pos].Position = pos
		created = p.Stages[pos]

		return &change{
			kind:       domain.HistoryCreate,
			targetKind: domain.EntityStage,
			targetID:   st.ID,
			after:      domain.Snapshot{"label": label, "position": strconv.Itoa(pos)},
			outcome:    fmt.Sprintf("stage %q created at position %d", label, pos+1),
		}, nil
	})
	if err != nil {
		return domain.Stage{}, err
	}
	return created, nil
}

// CreateTask inserts a task into stageID at position at, or appends.
func (s *Store) CreateTask(ctx context.Context, actorID, projectID, stageID, label string, at *int, opts TaskOptions, checks ...Check) (domain.Task, error) {
	label = strings.TrimSpace(label)
	if err := domain.ValidateLabel(label); err != nil {
		return domain.Task{}, err
	}
	if opts.EstimatedHours < 0 {
		return domain.Task{}, domain.NewValidationError("estimated_hours", "must not be negative")
	}

	var created domain.Task
	err := s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		si := p.FindStage(stageID)
		if si < 0 {
			return nil, &domain.NotFoundError{Kind: domain.EntityStage, ID: stageID}
		}
		stage := &p.Stages[si]
		pos, err := insertPosition(at, len(stage.Tasks))
		if err != nil {
			return nil, err
		}

		t := domain.Task{
			ID:             s.newID(),
			StageID:        stage.ID,
			Label:          label,
			Status:         domain.TaskPending,
			EstimatedHours: opts.EstimatedHours,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if a := normalizeAssignee(opts.Assignee); a != nil {
			t.Assignee = a
		}
		if opts.DueDate != nil {
			d := domain.DateOnly(*opts.DueDate)
			t.DueDate = &d
		}
		stage.Tasks = insertAt(stage.Tasks, pos, t)
		stage.Tasks[pos].Position = pos
		created = stage.Tasks[pos]

		after := taskSnapshot(t)
		after["position"] = strconv.Itoa(pos)
		return &change{
			kind:       domain.HistoryCreate,
			targetKind: domain.EntityTask,
			targetID:   t.ID,
			after:      after,
			outcome:    fmt.Sprintf("task %q added to %q", label, stage.Label),
		}, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// UpdateStatus moves a stage or task through its state machine.
func (s *Store) UpdateStatus(ctx context.Context, actorID, projectID, entityID, status string, checks ...Check) error {
	return s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		if si := p.FindStage(entityID); si >= 0 {
			st := &p.Stages[si]
			from := st.Status
			if err := st.TransitionTo(domain.StageStatus(status), now); err != nil {
				return nil, err
			}
			return statusChange(domain.HistoryStatusChange, domain.EntityStage, st.ID, st.Label, string(from), string(st.Status)), nil
		}
		if si, ti := p.FindTask(entityID); si >= 0 {
			t := &p.Stages[si].Tasks[ti]
			from := t.Status
			if err := t.TransitionTo(domain.TaskStatus(status), now); err != nil {
				return nil, err
			}
			return statusChange(domain.HistoryStatusChange, domain.EntityTask, t.ID, t.Label, string(from), string(t.Status)), nil
		}
		return nil, entityNotFound(entityID)
	})
}

// Reopen moves a completed stage back to in_progress or a done task back
// to pending. It is logged as its own history kind.
func (s *Store) Reopen(ctx context.Context, actorID, projectID, entityID string, checks ...Check) error {
	return s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		if si := p.FindStage(entityID); si >= 0 {
			st := &p.Stages[si]
			from := st.Status
			if err := st.Reopen(now); err != nil {
				return nil, err
			}
			return statusChange(domain.HistoryReopen, domain.EntityStage, st.ID, st.Label, string(from), string(st.Status)), nil
		}
		if si, ti := p.FindTask(entityID); si >= 0 {
			t := &p.Stages[si].Tasks[ti]
			from := t.Status
			if err := t.Reopen(now); err != nil {
				return nil, err
			}
			return statusChange(domain.HistoryReopen, domain.EntityTask, t.ID, t.Label, string(from), string(t.Status)), nil
		}
		return nil, entityNotFound(entityID)
	})
}

// UpdateFields applies a partial update and records only the fields that
// actually changed. A patch that changes nothing is rejected.
func (s *Store) UpdateFields(ctx context.Context, actorID, projectID, entityID string, patch FieldPatch, checks ...Check) error {
	if patch.IsEmpty() {
		return domain.NewValidationError("patch", "no fields to update")
	}
	if patch.Label != nil {
		trimmed := strings.TrimSpace(*patch.Label)
		if err := domain.ValidateLabel(trimmed); err != nil {
			return err
		}
		patch.Label = &trimmed
	}
	if patch.DueDate != nil && patch.ClearDueDate {
		return domain.NewValidationError("due_date", "cannot set and clear the due date at once")
	}
	if patch.EstimatedHours != nil && *patch.EstimatedHours < 0 {
		return domain.NewValidationError("estimated_hours", "must not be negative")
	}

	return s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		before, after := domain.Snapshot{}, domain.Snapshot{}

		if si := p.FindStage(entityID); si >= 0 {
			st := &p.Stages[si]
			if patch.Assignee != nil || patch.DueDate != nil || patch.ClearDueDate || patch.EstimatedHours != nil {
				return nil, domain.NewValidationError("patch", "stages only accept a label")
			}
			if *patch.Label != st.Label {
				before["label"], after["label"] = st.Label, *patch.Label
				st.Label = *patch.Label
			}
			if len(after) == 0 {
				return nil, domain.NewValidationError("patch", "nothing changed")
			}
			st.UpdatedAt = now
			return &change{
				kind:       domain.HistoryUpdate,
				targetKind: domain.EntityStage,
				targetID:   st.ID,
				before:     before,
				after:      after,
				outcome:    fmt.Sprintf("stage %q renamed to %q", before["label"], after["label"]),
			}, nil
		}

		si, ti := p.FindTask(entityID)
		if si < 0 {
			return nil, entityNotFound(entityID)
		}
		t := &p.Stages[si].Tasks[ti]

		if patch.Label != nil && *patch.Label != t.Label {
			before["label"], after["label"] = t.Label, *patch.Label
			t.Label = *patch.Label
		}
		if patch.Assignee != nil {
			next := normalizeAssignee(patch.Assignee)
			if t.AssigneeOrEmpty() != derefOrEmpty(next) {
				before["assignee"], after["assignee"] = t.AssigneeOrEmpty(), derefOrEmpty(next)
				t.Assignee = next
			}
		}
		if patch.DueDate != nil {
			d := domain.DateOnly(*patch.DueDate)
			if t.DueDate == nil || !t.DueDate.Equal(d) {
				before["due_date"], after["due_date"] = t.DueDateString(), d.Format(domain.DateLayout)
				t.DueDate = &d
			}
		}
		if patch.ClearDueDate && t.DueDate != nil {
			before["due_date"], after["due_date"] = t.DueDateString(), ""
			t.DueDate = nil
		}
		if patch.EstimatedHours != nil && *patch.EstimatedHours != t.EstimatedHours {
			before["estimated_hours"] = formatHours(t.EstimatedHours)
			after["estimated_hours"] = formatHours(*patch.EstimatedHours)
			t.EstimatedHours = *patch.EstimatedHours
		}

		if len(after) == 0 {
			return nil, domain.NewValidationError("patch", "nothing changed")
		}
		t.UpdatedAt = now
		return &change{
			kind:       domain.HistoryUpdate,
			targetKind: domain.EntityTask,
			targetID:   t.ID,
			before:     before,
			after:      after,
			outcome:    fmt.Sprintf("task %q updated (%s)", t.Label, strings.Join(sortedKeys(after), ", ")),
		}, nil
	})
}

// Reorder sets the order of a sibling set: the plan's stages when stageID is
// nil, otherwise that stage's tasks. orderedIDs must be exactly a
// permutation of the current set.
func (s *Store) Reorder(ctx context.Context, actorID, projectID string, stageID *string, orderedIDs []string, checks ...Check) error {
	return s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		if stageID == nil {
			current := p.StageIDs()
			if err := checkPermutation(current, orderedIDs); err != nil {
				return nil, err
			}
			p.Stages = permute(p.Stages, orderedIDs, func(st domain.Stage) string { return st.ID })
			return &change{
				kind:       domain.HistoryReorder,
				targetKind: domain.EntityPlan,
				targetID:   p.ProjectID,
				before:     domain.Snapshot{"order": strings.Join(current, ",")},
				after:      domain.Snapshot{"order": strings.Join(orderedIDs, ",")},
				outcome:    fmt.Sprintf("%d stages reordered", len(orderedIDs)),
			}, nil
		}

		si := p.FindStage(*stageID)
		if si < 0 {
			return nil, &domain.NotFoundError{Kind: domain.EntityStage, ID: *stageID}
		}
		st := &p.Stages[si]
		current := st.TaskIDs()
		if err := checkPermutation(current, orderedIDs); err != nil {
			return nil, err
		}
		st.Tasks = permute(st.Tasks, orderedIDs, func(t domain.Task) string { return t.ID })
		st.UpdatedAt = now
		return &change{
			kind:       domain.HistoryReorder,
			targetKind: domain.EntityStage,
			targetID:   st.ID,
			before:     domain.Snapshot{"order": strings.Join(current, ",")},
			after:      domain.Snapshot{"order": strings.Join(orderedIDs, ",")},
			outcome:    fmt.Sprintf("tasks of %q reordered", st.Label),
		}, nil
	})
}

// DeleteStage removes a stage together with all of its tasks.
func (s *Store) DeleteStage(ctx context.Context, actorID, projectID, stageID string, checks ...Check) error {
	return s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		si := p.FindStage(stageID)
		if si < 0 {
			return nil, &domain.NotFoundError{Kind: domain.EntityStage, ID: stageID}
		}
		st := p.Stages[si]
		p.Stages = append(p.Stages[:si], p.Stages[si+1:]...)

		return &change{
			kind:       domain.HistoryDelete,
			targetKind: domain.EntityStage,
			targetID:   st.ID,
			before: domain.Snapshot{
				"label":    st.Label,
				"position": strconv.Itoa(st.Position),
				"status":   string(st.Status),
				"tasks":    strings.Join(st.TaskIDs(), ","),
			},
			outcome: fmt.Sprintf("stage %q removed with %d tasks", st.Label, len(st.Tasks)),
		}, nil
	})
}

// DeleteTask removes a single task.
func (s *Store) DeleteTask(ctx context.Context, actorID, projectID, taskID string, checks ...Check) error {
	return s.mutate(ctx, actorID, projectID, checks, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		si, ti := p.FindTask(taskID)
		if si < 0 {
			return nil, &domain.NotFoundError{Kind: domain.EntityTask, ID: taskID}
		}
		st := &p.Stages[si]
		t := st.Tasks[ti]
		st.Tasks = append(st.Tasks[:ti], st.Tasks[ti+1:]...)
		st.UpdatedAt = now

		before := taskSnapshot(t)
		before["position"] = strconv.Itoa(t.Position)
		before["status"] = string(t.Status)
		return &change{
			kind:       domain.HistoryDelete,
			targetKind: domain.EntityTask,
			targetID:   t.ID,
			before:     before,
			outcome:    fmt.Sprintf("task %q removed from %q", t.Label, st.Label),
		}, nil
	})
}

func insertPosition(at *int, n int) (int, error) {
	if at == nil {
		return n, nil
	}
	if *at < 0 || *at > n {
		return 0, domain.NewValidationError("position", "%d is outside 0..%d", *at, n)
	}
	return *at, nil
}

func insertAt[T any](items []T, pos int, item T) []T {
	items = append(items, item)
	copy(items[pos+1:], items[pos:])
	items[pos] = item
	return items
}

func checkPermutation(current, ordered []string) error {
	if len(ordered) != len(current) {
		return domain.NewValidationError("order", "expected %d ids, got %d", len(current), len(ordered))
	}
	want := make(map[string]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	seen := make(map[string]bool, len(ordered))
	for _, id := range ordered {
		if !want[id] {
			return domain.NewValidationError("order", "%q is not in the sibling set", id)
		}
		if seen[id] {
			return domain.NewValidationError("order", "%q listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

func permute[T any](items []T, order []string, id func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[id(it)] = it
	}
	out := make([]T, 0, len(order))
	for _, oid := range order {
		out = append(out, byID[oid])
	}
	return out
}

func statusChange(kind domain.HistoryKind, entity domain.EntityKind, id, label, from, to string) *change {
	verb := "moved"
	if kind == domain.HistoryReopen {
		verb = "reopened"
	}
	return &change{
		kind:       kind,
		targetKind: entity,
		targetID:   id,
		before:     domain.Snapshot{"status": from},
		after:      domain.Snapshot{"status": to},
		outcome:    fmt.Sprintf("%s %q %s: %s -> %s", entity, label, verb, from, to),
	}
}

func entityNotFound(id string) error {
	return &domain.NotFoundError{Kind: "stage or task", ID: id}
}

func taskSnapshot(t domain.Task) domain.Snapshot {
	snap := domain.Snapshot{"label": t.Label, "stage_id": t.StageID}
	if t.Assignee != nil {
		snap["assignee"] = *t.Assignee
	}
	if t.DueDate != nil {
		snap["due_date"] = t.DueDateString()
	}
	if t.EstimatedHours != 0 {
		snap["estimated_hours"] = formatHours(t.EstimatedHours)
	}
	return snap
}

func planSnapshot(p *domain.ProjectPlan) domain.Snapshot {
	return domain.Snapshot{
		"template": p.TemplateID,
		"stages":   strconv.Itoa(len(p.Stages)),
		"tasks":    strconv.Itoa(p.TaskCount()),
	}
}

func normalizeAssignee(a *string) *string {
	if a == nil {
		return nil
	}
	v := strings.TrimSpace(*a)
	if v == "" {
		return nil
	}
	return &v
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func sortedKeys(m domain.Snapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortPlans(plans []*domain.ProjectPlan) {
	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.Before(plans[j].CreatedAt)
		}
		return plans[i].ProjectID < plans[j].ProjectID
	})
}
