package service

import (
	"context"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/guard"
	"github.com/alexanderramin/atelier/internal/plan"
	tmpl "github.com/alexanderramin/atelier/internal/template"
)

type TemplateService interface {
	List(ctx context.Context) ([]TemplateSummary, error)
	// Get resolves a template by ID or display name, case-insensitively.
	Get(ctx context.Context, ref string) (*tmpl.TemplateSchema, error)
	Detect(ctx context.Context, b domain.Briefing) (tmpl.Detection, error)
	Rules(ctx context.Context) (defaultID string, rules []tmpl.RuleConfig)
}

// ProjectService creates plans from templates and serves plan-level reads.
// A project ref is either the project ID or its short ID.
type ProjectService interface {
	Init(ctx context.Context, actor guard.Actor, req InitRequest) (*InitResult, error)
	Get(ctx context.Context, ref string) (*domain.ProjectPlan, error)
	List(ctx context.Context, includeArchived bool) ([]*domain.ProjectPlan, error)
	History(ctx context.Context, ref string) ([]domain.HistoryEntry, error)
	Archive(ctx context.Context, actor guard.Actor, ref string) error
}

// PlanService applies guarded stage and task mutations.
type PlanService interface {
	CreateStage(ctx context.Context, actor guard.Actor, ref, label string, at *int) (domain.Stage, error)
	CreateTask(ctx context.Context, actor guard.Actor, ref, stageID, label string, at *int, opts plan.TaskOptions) (domain.Task, error)
	UpdateStatus(ctx context.Context, actor guard.Actor, ref, entityID, status string) error
	Reopen(ctx context.Context, actor guard.Actor, ref, entityID string) error
	UpdateFields(ctx context.Context, actor guard.Actor, ref, entityID string, patch plan.FieldPatch) error
	Reorder(ctx context.Context, actor guard.Actor, ref string, stageID *string, orderedIDs []string) error
	DeleteStage(ctx context.Context, actor guard.Actor, ref, stageID string) error
	DeleteTask(ctx context.Context, actor guard.Actor, ref, taskID string) error
}

// TemplateSummary is a catalog row.
type TemplateSummary struct {
	ID          string
	Name        string
	Version     string
	Discipline  string
	Stages      int
	Tasks       int
	EffortHours float64
	Default     bool
}

// InitRequest asks for a plan to be materialized. An empty TemplateID runs
// detection on the briefing. With Replace, Ref names the existing project
// and a nil Briefing reuses the one stored with it. DryRun computes the
// result and its outline diff without touching the store.
type InitRequest struct {
	Ref        string
	Name       string
	ShortID    string
	TemplateID string
	Briefing   domain.Briefing
	Replace    bool
	DryRun     bool
}

// InitResult describes a materialization. Detection is nil when the
// template was named explicitly.
type InitResult struct {
	Plan      *domain.ProjectPlan
	Detection *tmpl.Detection
	Diff      string
	Replaced  bool
	DryRun    bool
}
