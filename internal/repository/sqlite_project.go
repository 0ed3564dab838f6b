package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/domain"
)

// SQLiteProjectRepo implements ProjectRepo using a SQLite database.
type SQLiteProjectRepo struct {
	db db.DBTX
}

// NewSQLiteProjectRepo creates a new SQLiteProjectRepo.
func NewSQLiteProjectRepo(db db.DBTX) *SQLiteProjectRepo {
	return &SQLiteProjectRepo{db: db}
}

const projectColumns = `id, short_id, name, template_id, briefing_json, status, archived_at, created_at, updated_at`

func (r *SQLiteProjectRepo) Upsert(ctx context.Context, p *domain.ProjectPlan) error {
	briefing, err := json.Marshal(p.Briefing)
	if err != nil {
		return fmt.Errorf("encoding briefing: %w", err)
	}
	query := `INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			short_id = excluded.short_id,
			name = excluded.name,
			template_id = excluded.template_id,
			briefing_json = excluded.briefing_json,
			status = excluded.status,
			archived_at = excluded.archived_at,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		p.ProjectID,
		p.ShortID,
		p.Name,
		p.TemplateID,
		string(briefing),
		string(p.Status),
		nullableTimeToString(p.ArchivedAt, timeLayout),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) GetByID(ctx context.Context, id string) (*domain.ProjectPlan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row, id)
}

// GetByShortID matches case-insensitively.
func (r *SQLiteProjectRepo) GetByShortID(ctx context.Context, shortID string) (*domain.ProjectPlan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects
		WHERE short_id != '' AND UPPER(short_id) = UPPER(?)`, shortID)
	return scanProject(row, shortID)
}

func (r *SQLiteProjectRepo) ListIDs(ctx context.Context, includeArchived bool) ([]string, error) {
	query := `SELECT id FROM projects ORDER BY created_at, id`
	if !includeArchived {
		query = `SELECT id FROM projects WHERE status = 'active' ORDER BY created_at, id`
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return ids, nil
}

func scanProject(row *sql.Row, ref string) (*domain.ProjectPlan, error) {
	var p domain.ProjectPlan
	var briefing, status, createdAt, updatedAt string
	var archivedAt sql.NullString

	err := row.Scan(&p.ProjectID, &p.ShortID, &p.Name, &p.TemplateID, &briefing, &status, &archivedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: domain.EntityPlan, ID: ref}
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	if err := json.Unmarshal([]byte(briefing), &p.Briefing); err != nil {
		return nil, fmt.Errorf("decoding briefing of %s: %w", p.ProjectID, err)
	}
	p.Status = domain.PlanStatus(status)
	p.ArchivedAt = parseNullableTime(archivedAt, timeLayout)
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
