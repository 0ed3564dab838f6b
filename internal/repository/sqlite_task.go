package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/domain"
)

type SQLiteTaskRepo struct {
	db db.DBTX
}

func NewSQLiteTaskRepo(db db.DBTX) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: db}
}

func (r *SQLiteTaskRepo) Insert(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO tasks
		(id, stage_id, label, status, assignee, position, due_date, estimated_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.StageID, t.Label, string(t.Status),
		nullableString(t.Assignee),
		t.Position,
		nullableTimeToString(t.DueDate, domain.DateLayout),
		t.EstimatedHours,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task %s: %w", t.ID, err)
	}
	return nil
}

// ListByProject returns all tasks of the project ordered by stage position,
// then task position.
func (r *SQLiteTaskRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT t.id, t.stage_id, t.label, t.status, t.assignee, t.position,
			t.due_date, t.estimated_hours, t.created_at, t.updated_at
		FROM tasks t JOIN stages s ON s.id = t.stage_id
		WHERE s.project_id = ?
		ORDER BY s.position, t.position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var status, createdAt, updatedAt string
		var assignee, dueDate sql.NullString
		err := rows.Scan(&t.ID, &t.StageID, &t.Label, &status, &assignee, &t.Position,
			&dueDate, &t.EstimatedHours, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.Status = domain.TaskStatus(status)
		t.Assignee = stringPtr(assignee)
		t.DueDate = parseNullableTime(dueDate, domain.DateLayout)
		if t.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}
