package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/domain"
)

type SQLiteStageRepo struct {
	db db.DBTX
}

func NewSQLiteStageRepo(db db.DBTX) *SQLiteStageRepo {
	return &SQLiteStageRepo{db: db}
}

func (r *SQLiteStageRepo) Insert(ctx context.Context, s *domain.Stage) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO stages (id, project_id, label, position, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.Label, s.Position, string(s.Status),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting stage %s: %w", s.ID, err)
	}
	return nil
}

// ListByProject returns the project's stages in position order, without
// their tasks.
func (r *SQLiteStageRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Stage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, project_id, label, position, status, created_at, updated_at
		FROM stages WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing stages: %w", err)
	}
	defer rows.Close()

	stages := []domain.Stage{}
	for rows.Next() {
		var s domain.Stage
		var status, createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Label, &s.Position, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning stage row: %w", err)
		}
		s.Status = domain.StageStatus(status)
		if s.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if s.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		s.Tasks = []domain.Task{}
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stages: %w", err)
	}
	return stages, nil
}

// DeleteByProject removes every stage of the project and, explicitly, their
// tasks.
func (r *SQLiteStageRepo) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks
		WHERE stage_id IN (SELECT id FROM stages WHERE project_id = ?)`, projectID); err != nil {
		return fmt.Errorf("deleting tasks: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM stages WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("deleting stages: %w", err)
	}
	return nil
}
