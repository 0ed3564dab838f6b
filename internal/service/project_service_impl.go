package service

import (
	"context"
	"errors"
	"strings"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/guard"
	"github.com/alexanderramin/atelier/internal/plan"
	tmpl "github.com/alexanderramin/atelier/internal/template"
	"github.com/google/uuid"
)

// ShortIDResolver finds a stored plan by its short ID.
type ShortIDResolver interface {
	LoadByShortID(ctx context.Context, shortID string) (*domain.ProjectPlan, error)
}

type ProjectOption func(*projectService)

// WithShortIDResolver lets ref lookups skip the full plan scan.
func WithShortIDResolver(r ShortIDResolver) ProjectOption {
	return func(s *projectService) { s.resolver = r }
}

// WithMaterializer overrides the default materializer.
func WithMaterializer(m *tmpl.Materializer) ProjectOption {
	return func(s *projectService) { s.materializer = m }
}

// WithProjectIDGenerator overrides uuid-based project IDs.
func WithProjectIDGenerator(newID func() string) ProjectOption {
	return func(s *projectService) { s.newID = newID }
}

// WithProjectObserver attaches a use-case observer.
func WithProjectObserver(obs UseCaseObserver) ProjectOption {
	return func(s *projectService) { s.observer = useCaseObserverOrNoop([]UseCaseObserver{obs}) }
}

type projectService struct {
	store        *plan.Store
	templates    TemplateService
	guard        guard.Authorizer
	materializer *tmpl.Materializer
	resolver     ShortIDResolver
	newID        func() string
	observer     UseCaseObserver
}

func NewProjectService(store *plan.Store, templates TemplateService, authz guard.Authorizer, opts ...ProjectOption) *projectService {
	s := &projectService{
		store:        store,
		templates:    templates,
		guard:        authz,
		materializer: tmpl.NewMaterializer(),
		newID:        func() string { return uuid.New().String() },
		observer:     NoopUseCaseObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *projectService) Init(ctx context.Context, actor guard.Actor, req InitRequest) (res *InitResult, err error) {
	fields := map[string]any{"actor": actor.ID, "replace": req.Replace, "dry_run": req.DryRun}
	done := observe(ctx, s.observer, "init-project", fields)
	defer func() { done(err) }()

	shortID := strings.ToUpper(strings.TrimSpace(req.ShortID))
	if err := domain.ValidateShortID(shortID); err != nil {
		return nil, err
	}

	var current *domain.ProjectPlan
	projectID := s.newID()
	briefing := req.Briefing
	name := strings.TrimSpace(req.Name)

	if req.Replace {
		current, err = s.resolve(ctx, req.Ref)
		if err != nil {
			return nil, err
		}
		if current.IsArchived() {
			return nil, domain.NewValidationError("plan", "project %s is archived", current.DisplayID())
		}
		projectID = current.ProjectID
		if briefing == nil {
			briefing = current.Briefing
		}
	} else if name == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if briefing == nil {
		briefing = domain.Briefing{}
	}

	res = &InitResult{Replaced: req.Replace, DryRun: req.DryRun}
	templateID := strings.TrimSpace(req.TemplateID)
	if templateID == "" {
		det, err := s.templates.Detect(ctx, briefing)
		if err != nil {
			return nil, err
		}
		res.Detection = &det
		templateID = det.TemplateID
	}
	schema, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	fields["template_id"] = schema.ID

	next, err := s.materializer.Materialize(schema, briefing, projectID)
	if err != nil {
		return nil, err
	}
	next.Name = name
	next.ShortID = shortID
	if current != nil {
		if next.Name == "" {
			next.Name = current.Name
		}
		if next.ShortID == "" {
			next.ShortID = current.ShortID
		}
	}
	res.Plan = next
	fields["project_id"] = next.ProjectID

	op := guard.OpPlanMaterialize
	if req.Replace {
		op = guard.OpPlanReplace
	}
	target := guard.Target{Kind: domain.EntityPlan, ID: projectID, ProjectID: projectID}
	if err := guard.Require(ctx, s.guard, actor, op, target); err != nil {
		return nil, err
	}

	if next.ShortID != "" && (current == nil || current.ShortID != next.ShortID) {
		if err := s.ensureShortIDFree(ctx, next.ShortID, projectID); err != nil {
			return nil, err
		}
	}

	fromName := "current"
	if current == nil {
		fromName = "empty"
	}
	res.Diff, err = plan.OutlineDiff(current, next, fromName, schema.ID)
	if err != nil {
		return nil, err
	}
	if req.DryRun {
		return res, nil
	}

	if req.Replace {
		err = s.store.Replace(ctx, actor.ID, next)
	} else {
		err = s.store.Install(ctx, actor.ID, next)
	}
	if err != nil {
		return nil, err
	}
	res.Plan, err = s.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *projectService) Get(ctx context.Context, ref string) (*domain.ProjectPlan, error) {
	return s.resolve(ctx, ref)
}

func (s *projectService) List(ctx context.Context, includeArchived bool) ([]*domain.ProjectPlan, error) {
	plans, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		return plans, nil
	}
	out := plans[:0]
	for _, p := range plans {
		if !p.IsArchived() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *projectService) History(ctx context.Context, ref string) ([]domain.HistoryEntry, error) {
	p, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return p.History, nil
}

func (s *projectService) Archive(ctx context.Context, actor guard.Actor, ref string) (err error) {
	fields := map[string]any{"actor": actor.ID, "ref": ref}
	done := observe(ctx, s.observer, "archive-project", fields)
	defer func() { done(err) }()

	p, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	target := guard.Target{Kind: domain.EntityPlan, ID: p.ProjectID, ProjectID: p.ProjectID}
	if err := guard.Require(ctx, s.guard, actor, guard.OpPlanArchive, target); err != nil {
		return err
	}
	if p.IsArchived() {
		return domain.NewValidationError("plan", "project %s is already archived", p.DisplayID())
	}
	return s.store.Archive(ctx, actor.ID, p.ProjectID)
}

func (s *projectService) ensureShortIDFree(ctx context.Context, shortID, projectID string) error {
	p, err := s.findByShortID(ctx, shortID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.ProjectID != projectID {
		return domain.NewValidationError("short_id", "%s is already used by another project", shortID)
	}
	return nil
}

// resolve accepts a project ID or a short ID.
func (s *projectService) resolve(ctx context.Context, ref string) (*domain.ProjectPlan, error) {
	return resolvePlan(ctx, s.store, s.resolver, ref)
}

func (s *projectService) findByShortID(ctx context.Context, shortID string) (*domain.ProjectPlan, error) {
	return findByShortID(ctx, s.store, s.resolver, shortID)
}

func resolvePlan(ctx context.Context, store *plan.Store, resolver ShortIDResolver, ref string) (*domain.ProjectPlan, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewValidationError("project", "reference must not be empty")
	}
	p, err := store.Get(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	p, err = findByShortID(ctx, store, resolver, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: ref}
	}
	return p, err
}

func findByShortID(ctx context.Context, store *plan.Store, resolver ShortIDResolver, shortID string) (*domain.ProjectPlan, error) {
	if resolver != nil {
		found, err := resolver.LoadByShortID(ctx, shortID)
		if err == nil {
			// Serve the store's copy so unflushed state is never bypassed.
			return store.Get(ctx, found.ProjectID)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	plans, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.ShortID != "" && strings.EqualFold(p.ShortID, shortID) {
			return p, nil
		}
	}
	return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: shortID}
}
