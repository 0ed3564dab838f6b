package repository

import (
	"context"

	"github.com/alexanderramin/atelier/internal/domain"
)

// ProjectRepo stores the plan header: everything but stages, tasks and
// history. The returned plan has nil Stages and History.
type ProjectRepo interface {
	Upsert(ctx context.Context, p *domain.ProjectPlan) error
	GetByID(ctx context.Context, id string) (*domain.ProjectPlan, error)
	GetByShortID(ctx context.Context, shortID string) (*domain.ProjectPlan, error)
	ListIDs(ctx context.Context, includeArchived bool) ([]string, error)
}

type StageRepo interface {
	Insert(ctx context.Context, s *domain.Stage) error
	ListByProject(ctx context.Context, projectID string) ([]domain.Stage, error)
	DeleteByProject(ctx context.Context, projectID string) error
}

type TaskRepo interface {
	Insert(ctx context.Context, t *domain.Task) error
	ListByProject(ctx context.Context, projectID string) ([]domain.Task, error)
}

// HistoryRepo is append-only.
type HistoryRepo interface {
	Append(ctx context.Context, h *domain.HistoryEntry) error
	MaxSeq(ctx context.Context, projectID string) (int, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.HistoryEntry, error)
}
