package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/domain"
)

// FailOnNthExecUoW injects Err on the Nth ExecContext call of a transaction
// (counting from 1) so tests can break a multi-statement save half way.
// Reads pass through uncounted.
type FailOnNthExecUoW struct {
	DB     *sql.DB
	FailOn int32
	Err    error
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	wrapped := &failOnNthExec{DBTX: tx, failOn: u.FailOn, err: u.Err}
	if fnErr := fn(ctx, wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failOnNthExec struct {
	db.DBTX
	count  atomic.Int32
	failOn int32
	err    error
}

func (f *failOnNthExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	n := f.count.Add(1)
	if n == f.failOn {
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}

// ErrInjected is returned by FailingPersister when armed.
var ErrInjected = errors.New("injected persistence failure")

// FailingPersister is an in-memory plan persister whose saves can be made
// to fail. It keeps deep copies, like a real store would.
type FailingPersister struct {
	mu    sync.Mutex
	plans map[string]*domain.ProjectPlan
	fail  bool
	Saves int
	Loads int
}

func NewFailingPersister() *FailingPersister {
	return &FailingPersister{plans: map[string]*domain.ProjectPlan{}}
}

// FailSaves arms or disarms the failure.
func (f *FailingPersister) FailSaves(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *FailingPersister) SavePlan(_ context.Context, p *domain.ProjectPlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrInjected
	}
	f.Saves++
	f.plans[p.ProjectID] = p.Clone()
	return nil
}

func (f *FailingPersister) LoadPlan(_ context.Context, projectID string) (*domain.ProjectPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loads++
	p, ok := f.plans[projectID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: projectID}
	}
	return p.Clone(), nil
}

func (f *FailingPersister) ListPlanIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.plans))
	for id := range f.plans {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stored returns the last saved copy of a plan, or nil.
func (f *FailingPersister) Stored(projectID string) *domain.ProjectPlan {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.plans[projectID]; ok {
		return p.Clone()
	}
	return nil
}
