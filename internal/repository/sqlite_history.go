package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/atelier/internal/db"
	"github.com/alexanderramin/atelier/internal/domain"
)

type SQLiteHistoryRepo struct {
	db db.DBTX
}

func NewSQLiteHistoryRepo(db db.DBTX) *SQLiteHistoryRepo {
	return &SQLiteHistoryRepo{db: db}
}

func (r *SQLiteHistoryRepo) Append(ctx context.Context, h *domain.HistoryEntry) error {
	before, err := snapshotToJSON(h.Before)
	if err != nil {
		return err
	}
	after, err := snapshotToJSON(h.After)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO history
		(id, project_id, seq, timestamp, actor_id, target_kind, target_id, kind, before_json, after_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.ProjectID, h.Seq, formatTime(h.Timestamp), h.ActorID,
		string(h.TargetKind), h.TargetID, string(h.Kind), before, after,
	)
	if err != nil {
		return fmt.Errorf("appending history seq %d: %w", h.Seq, err)
	}
	return nil
}

// MaxSeq returns the highest stored sequence number, or 0.
func (r *SQLiteHistoryRepo) MaxSeq(ctx context.Context, projectID string) (int, error) {
	var seq int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM history WHERE project_id = ?`, projectID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("reading history seq: %w", err)
	}
	return seq, nil
}

func (r *SQLiteHistoryRepo) ListByProject(ctx context.Context, projectID string) ([]domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, project_id, seq, timestamp, actor_id, target_kind, target_id, kind,
			before_json, after_json
		FROM history WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var h domain.HistoryEntry
		var ts, targetKind, kind string
		var before, after sql.NullString
		err := rows.Scan(&h.ID, &h.ProjectID, &h.Seq, &ts, &h.ActorID, &targetKind, &h.TargetID, &kind, &before, &after)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		h.TargetKind = domain.EntityKind(targetKind)
		h.Kind = domain.HistoryKind(kind)
		if h.Timestamp, err = parseTime("timestamp", ts); err != nil {
			return nil, err
		}
		if h.Before, err = snapshotFromJSON(before); err != nil {
			return nil, err
		}
		if h.After, err = snapshotFromJSON(after); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}
