package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/domain"
	"github.com/alexanderramin/atelier/internal/plan"
)

var _ plan.Persister = (*SQLitePlanRepo)(nil)

// SQLitePlanRepo persists whole plans. Each save runs in one transaction:
// the header is upserted, the stage/task graph is rewritten and only the
// history entries not yet stored are appended.
type SQLitePlanRepo struct {
	uow db.UnitOfWork
}

func NewSQLitePlanRepo(uow db.UnitOfWork) *SQLitePlanRepo {
	return &SQLitePlanRepo{uow: uow}
}

func (r *SQLitePlanRepo) SavePlan(ctx context.Context, p *domain.ProjectPlan) error {
	return r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		projects := NewSQLiteProjectRepo(tx)
		stages := NewSQLiteStageRepo(tx)
		tasks := NewSQLiteTaskRepo(tx)
		history := NewSQLiteHistoryRepo(tx)

		if err := projects.Upsert(ctx, p); err != nil {
			return err
		}
		if err := stages.DeleteByProject(ctx, p.ProjectID); err != nil {
			return err
		}
		for i := range p.Stages {
			st := &p.Stages[i]
			if err := stages.Insert(ctx, st); err != nil {
				return err
			}
			for j := range st.Tasks {
				if err := tasks.Insert(ctx, &st.Tasks[j]); err != nil {
					return err
				}
			}
		}

		stored, err := history.MaxSeq(ctx, p.ProjectID)
		if err != nil {
			return err
		}
		for i := range p.History {
			if p.History[i].Seq <= stored {
				continue
			}
			if err := history.Append(ctx, &p.History[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadPlan returns an error wrapping domain.ErrNotFound for unknown projects.
func (r *SQLitePlanRepo) LoadPlan(ctx context.Context, projectID string) (*domain.ProjectPlan, error) {
	var p *domain.ProjectPlan
	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var err error
		p, err = NewSQLiteProjectRepo(tx).GetByID(ctx, projectID)
		if err != nil {
			return err
		}
		return fillPlan(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LoadByShortID resolves a project by its short identifier.
func (r *SQLitePlanRepo) LoadByShortID(ctx context.Context, shortID string) (*domain.ProjectPlan, error) {
	var p *domain.ProjectPlan
	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var err error
		p, err = NewSQLiteProjectRepo(tx).GetByShortID(ctx, shortID)
		if err != nil {
			return err
		}
		return fillPlan(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLitePlanRepo) ListPlanIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var err error
		ids, err = NewSQLiteProjectRepo(tx).ListIDs(ctx, true)
		return err
	})
	return ids, err
}

func fillPlan(ctx context.Context, tx db.DBTX, p *domain.ProjectPlan) error {
	stages, err := NewSQLiteStageRepo(tx).ListByProject(ctx, p.ProjectID)
	if err != nil {
		return err
	}
	tasks, err := NewSQLiteTaskRepo(tx).ListByProject(ctx, p.ProjectID)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(stages))
	for i, st := range stages {
		index[st.ID] = i
	}
	for _, t := range tasks {
		i, ok := index[t.StageID]
		if !ok {
			return fmt.Errorf("task %s references unknown stage %s", t.ID, t.StageID)
		}
		stages[i].Tasks = append(stages[i].Tasks, t)
	}
	p.Stages = stages

	p.History, err = NewSQLiteHistoryRepo(tx).ListByProject(ctx, p.ProjectID)
	return err
}
