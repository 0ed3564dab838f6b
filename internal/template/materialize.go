package template

import (
	"strings"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/google/uuid"
)

// StartDateKey is the briefing answer task due offsets are counted from.
const StartDateKey = "start_date"

// idNamespace scopes materialized identifiers so they cannot collide with
// other SHA1 UUIDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("atelier/materialize"))

// Materializer turns a template and a briefing into a concrete plan.
type Materializer struct {
	now func() time.Time
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) { m.now = now }
}

// NewMaterializer creates a Materializer.
func NewMaterializer(opts ...MaterializerOption) *Materializer {
	m := &Materializer{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StageID returns the identifier a stage blueprint receives in a project.
func StageID(projectID, blueprintID string) string {
	return uuid.NewSHA1(idNamespace, []byte(projectID+"/stage/"+blueprintID)).String()
}

// TaskID returns the identifier a task blueprint receives in a project.
func TaskID(projectID, blueprintID string) string {
	return uuid.NewSHA1(idNamespace, []byte(projectID+"/task/"+blueprintID)).String()
}

// Materialize builds the initial plan for projectID. Stage and task blueprints
// whose include_if predicate does not hold for the briefing are skipped;
// positions follow blueprint order over what remains. Statuses start at
// not_started/pending and the history is empty.
//
// Identifiers are derived from the project and blueprint IDs, so identical
// inputs always yield the same plan. The only error cases are an invalid
// template (ErrInvalidTemplate) and an empty project ID.
func (m *Materializer) Materialize(schema *TemplateSchema, b domain.Briefing, projectID string) (*domain.ProjectPlan, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, domain.NewValidationError("project_id", "must not be empty")
	}
	if err := Validate(schema); err != nil {
		return nil, err
	}

	now := m.now()
	var start *time.Time
	if d, err := b.Date(StartDateKey); err == nil {
		start = d
	}

	plan := &domain.ProjectPlan{
		ProjectID:  projectID,
		TemplateID: schema.ID,
		Briefing:   b.Clone(),
		Status:     domain.PlanActive,
		CreatedAt:  now,
		UpdatedAt:  now,
		Stages:     []domain.Stage{},
		History:    []domain.HistoryEntry{},
	}

	for _, sc := range schema.Stages {
		if !included(sc.IncludeIf, b) {
			continue
		}
		stage := domain.Stage{
			ID:        StageID(projectID, sc.ID),
			ProjectID: projectID,
			Label:     expandOr(sc.Label, b),
			Position:  len(plan.Stages),
			Status:    domain.StageNotStarted,
			Tasks:     []domain.Task{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, tc := range sc.Tasks {
			if !included(tc.IncludeIf, b) {
				continue
			}
			task := domain.Task{
				ID:             TaskID(projectID, tc.ID),
				StageID:        stage.ID,
				Label:          expandOr(tc.Label, b),
				Status:         domain.TaskPending,
				Position:       len(stage.Tasks),
				EstimatedHours: tc.EffortHours,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if start != nil && tc.DueOffsetDays != nil {
				due := start.AddDate(0, 0, *tc.DueOffsetDays)
				task.DueDate = &due
			}
			stage.Tasks = append(stage.Tasks, task)
		}
		plan.Stages = append(plan.Stages, stage)
	}

	if err := plan.CheckInvariants(); err != nil {
		return nil, err
	}
	return plan, nil
}

func included(expr string, b domain.Briefing) bool {
	if expr == "" {
		return true
	}
	// Validate has already compiled every include_if.
	return MustCompilePredicate(expr).Match(b)
}

func expandOr(label string, b domain.Briefing) string {
	out, err := ExpandLabel(label, b)
	if err != nil || strings.TrimSpace(out) == "" {
		return label
	}
	return out
}
