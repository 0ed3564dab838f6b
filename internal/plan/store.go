// Package plan holds live project plans and applies every mutation to them.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/notify"
	"github.com/google/uuid"
)

// Persister is the storage boundary. LoadPlan must return an error wrapping
// domain.ErrNotFound for unknown projects. SavePlan receives the full
// post-mutation plan and must not retain it.
type Persister interface {
	LoadPlan(ctx context.Context, projectID string) (*domain.ProjectPlan, error)
	SavePlan(ctx context.Context, p *domain.ProjectPlan) error
	ListPlanIDs(ctx context.Context) ([]string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithPersister makes every committed write go through p before it becomes
// visible, and loads plans from p on first access.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithNotifier sets the receiver of post-commit events.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how new stage, task, history and event IDs are
// minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLogger sets the logger used for notifier failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store owns the live plans. Writes to one plan are serialized; writes to
// different plans proceed independently. Readers always get a deep copy of
// a committed state.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	persister Persister
	notifier  notify.Notifier
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

type entry struct {
	mu   sync.RWMutex
	plan *domain.ProjectPlan
	// emitMu keeps notifications in commit order without holding the plan
	// lock while notifiers run.
	emitMu sync.Mutex
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		notifier: notify.Nop,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadEntry returns the entry of a known plan. Unknown ids are not
// registered: a miss reads through to the persister and only a hit is kept.
func (s *Store) loadEntry(ctx context.Context, projectID string) (*entry, error) {
	s.mu.Lock()
	e, ok := s.entries[projectID]
	s.mu.Unlock()
	if ok {
		return e, nil
	}
	if s.persister == nil {
		return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: projectID}
	}

	p, err := s.persister.LoadPlan(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: projectID}
		}
		return nil, fmt.Errorf("loading plan %s: %w", projectID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent write may have registered the plan meanwhile; its state
	// is at least as new as what was just loaded.
	if e, ok := s.entries[projectID]; ok {
		return e, nil
	}
	e = &entry{plan: p}
	s.entries[projectID] = e
	return e, nil
}

// entry returns the entry for projectID, creating it. Only writes that may
// create a plan use it.
func (s *Store) entry(projectID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[projectID]
	if !ok {
		e = &entry{}
		s.entries[projectID] = e
	}
	return e
}

// loadLocked returns the committed plan, reading through to the persister on
// first access. The caller holds e.mu for writing.
func (s *Store) loadLocked(ctx context.Context, e *entry, projectID string) (*domain.ProjectPlan, error) {
	if e.plan != nil {
		return e.plan, nil
	}
	if s.persister == nil {
		return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: projectID}
	}
	p, err := s.persister.LoadPlan(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: projectID}
		}
		return nil, fmt.Errorf("loading plan %s: %w", projectID, err)
	}
	e.plan = p
	return p, nil
}

// change is what a mutation reports back for the history log and the
// notification.
type change struct {
	kind       domain.HistoryKind
	targetKind domain.EntityKind
	targetID   string
	before     domain.Snapshot
	after      domain.Snapshot
	outcome    string
}

// Check inspects the committed plan under its write lock, before the
// mutation runs. A non-nil error aborts the write. Checks must not modify p.
type Check func(ctx context.Context, p *domain.ProjectPlan) error

// mutate runs fn against a clone of the plan and commits the clone only if
// the checks, fn, compaction, the history append, the invariant check and
// persistence all succeed.
func (s *Store) mutate(ctx context.Context, actorID, projectID string, checks []Check, fn func(p *domain.ProjectPlan, now time.Time) (*change, error)) error {
	e, err := s.loadEntry(ctx, projectID)
	if err != nil {
		return err
	}
	e.mu.Lock()

	current, err := s.loadLocked(ctx, e, projectID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	for _, check := range checks {
		if err := check(ctx, current); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	if current.IsArchived() {
		e.mu.Unlock()
		return domain.NewValidationError("plan", "project %s is archived", projectID)
	}

	now := s.now()
	next := current.Clone()
	c, err := fn(next, now)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	next.Compact()
	entry := s.historyEntry(next, actorID, now, c)
	next.History = append(next.History, entry)
	next.UpdatedAt = now

	if err := s.commitLocked(ctx, e, next); err != nil {
		e.mu.Unlock()
		return err
	}

	s.emitAndUnlock(e, s.event(entry, c.outcome))
	return nil
}

// commitLocked verifies and persists next, then swaps it in.
func (s *Store) commitLocked(ctx context.Context, e *entry, next *domain.ProjectPlan) error {
	if err := next.CheckInvariants(); err != nil {
		return fmt.Errorf("plan %s: invariant violated: %w", next.ProjectID, err)
	}
	if s.persister != nil {
		if err := s.persister.SavePlan(ctx, next); err != nil {
			return fmt.Errorf("saving plan %s: %w", next.ProjectID, err)
		}
	}
	e.plan = next
	return nil
}

// emitAndUnlock releases the plan lock and delivers ev. The emit lock is
// taken before the plan lock is released, so events leave in commit order
// while notifiers remain free to read the store.
func (s *Store) emitAndUnlock(e *entry, ev notify.Event) {
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notifier panicked", "project_id", ev.ProjectID, "event_id", ev.ID, "panic", fmt.Sprint(r))
		}
	}()
	s.notifier.Notify(ev)
}

func (s *Store) historyEntry(p *domain.ProjectPlan, actorID string, now time.Time, c *change) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:         s.newID(),
		ProjectID:  p.ProjectID,
		Seq:        p.NextHistorySeq(),
		Timestamp:  now,
		ActorID:    actorID,
		TargetKind: c.targetKind,
		TargetID:   c.targetID,
		Kind:       c.kind,
		Before:     c.before,
		After:      c.after,
	}
}

func (s *Store) event(h domain.HistoryEntry, outcome string) notify.Event {
	return notify.Event{
		ID:        s.newID(),
		ProjectID: h.ProjectID,
		Seq:       h.Seq,
		Operation: h.Kind,
		Entity:    h.TargetKind,
		EntityID:  h.TargetID,
		ActorID:   h.ActorID,
		Outcome:   outcome,
		At:        h.Timestamp,
	}
}

// Install registers the initial plan of a project, as produced by the
// materializer. The plan keeps its (normally empty) history. It fails when
// the project already has a plan.
func (s *Store) Install(ctx context.Context, actorID string, p *domain.ProjectPlan) error {
	if p == nil || p.ProjectID == "" {
		return domain.NewValidationError("plan", "project id is required")
	}
	e := s.entry(p.ProjectID)
	e.mu.Lock()

	if _, err := s.loadLocked(ctx, e, p.ProjectID); err == nil {
		e.mu.Unlock()
		return domain.NewValidationError("plan", "project %s already has a plan; replace it explicitly", p.ProjectID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		e.mu.Unlock()
		return err
	}

	now := s.now()
	next := p.Clone()
	if next.Status == "" {
		next.Status = domain.PlanActive
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = now
	}
	if next.Stages == nil {
		next.Stages = []domain.Stage{}
	}
	if next.History == nil {
		next.History = []domain.HistoryEntry{}
	}

	if err := s.commitLocked(ctx, e, next); err != nil {
		e.mu.Unlock()
		return err
	}

	s.emitAndUnlock(e, notify.Event{
		ID:        s.newID(),
		ProjectID: next.ProjectID,
		Operation: domain.HistoryCreate,
		Entity:    domain.EntityPlan,
		EntityID:  next.ProjectID,
		ActorID:   actorID,
		Outcome:   fmt.Sprintf("plan created from template %s with %d stages and %d tasks", next.TemplateID, len(next.Stages), next.TaskCount()),
		At:        now,
	})
	return nil
}

// Replace swaps the stage/task graph of an existing plan for a freshly
// materialized one. Nothing is merged; the history is kept and gains a
// single create entry.
func (s *Store) Replace(ctx context.Context, actorID string, p *domain.ProjectPlan) error {
	if p == nil || p.ProjectID == "" {
		return domain.NewValidationError("plan", "project id is required")
	}
	return s.mutate(ctx, actorID, p.ProjectID, nil, func(cur *domain.ProjectPlan, now time.Time) (*change, error) {
		before := planSnapshot(cur)

		fresh := p.Clone()
		cur.TemplateID = fresh.TemplateID
		if fresh.Briefing != nil {
			cur.Briefing = fresh.Briefing
		}
		if fresh.Name != "" {
			cur.Name = fresh.Name
		}
		if fresh.ShortID != "" {
			cur.ShortID = fresh.ShortID
		}
		cur.Stages = fresh.Stages
		if cur.Stages == nil {
			cur.Stages = []domain.Stage{}
		}

		return &change{
			kind:       domain.HistoryCreate,
			targetKind: domain.EntityPlan,
			targetID:   cur.ProjectID,
			before:     before,
			after:      planSnapshot(cur),
			outcome:    fmt.Sprintf("plan replaced from template %s with %d stages and %d tasks", cur.TemplateID, len(cur.Stages), cur.TaskCount()),
		}, nil
	})
}

// Archive retires a plan. History survives; later writes are rejected.
func (s *Store) Archive(ctx context.Context, actorID, projectID string) error {
	return s.mutate(ctx, actorID, projectID, nil, func(p *domain.ProjectPlan, now time.Time) (*change, error) {
		p.Status = domain.PlanArchived
		p.ArchivedAt = &now
		return &change{
			kind:       domain.HistoryUpdate,
			targetKind: domain.EntityPlan,
			targetID:   p.ProjectID,
			before:     domain.Snapshot{"status": string(domain.PlanActive)},
			after:      domain.Snapshot{"status": string(domain.PlanArchived)},
			outcome:    fmt.Sprintf("project %s archived", p.DisplayID()),
		}, nil
	})
}

// Get returns a snapshot of the plan.
func (s *Store) Get(ctx context.Context, projectID string) (*domain.ProjectPlan, error) {
	e, err := s.loadEntry(ctx, projectID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	if e.plan != nil {
		p := e.plan.Clone()
		e.mu.RUnlock()
		return p, nil
	}
	e.mu.RUnlock()

	// The entry outlived a failed Install: load under the write lock.
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := s.loadLocked(ctx, e, projectID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// History returns a copy of the plan's history in append order.
func (s *Store) History(ctx context.Context, projectID string) ([]domain.HistoryEntry, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.History, nil
}

// List returns snapshots of every known plan, ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*domain.ProjectPlan, error) {
	ids := map[string]bool{}
	s.mu.Lock()
	for id := range s.entries {
		ids[id] = true
	}
	s.mu.Unlock()

	if s.persister != nil {
		stored, err := s.persister.ListPlanIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing plans: %w", err)
		}
		for _, id := range stored {
			ids[id] = true
		}
	}

	plans := make([]*domain.ProjectPlan, 0, len(ids))
	for id := range ids {
		p, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	sortPlans(plans)
	return plans, nil
}
