package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Every statement is safe to re-run.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN has no IF NOT EXISTS form.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL,
		briefing_json TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived')),
		archived_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS stages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		position INTEGER NOT NULL CHECK (position >= 0),
		status TEXT NOT NULL CHECK (status IN ('not_started', 'in_progress', 'completed')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stages_project ON stages(project_id, position)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		stage_id TEXT NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'in_progress', 'done', 'blocked')),
		assignee TEXT,
		position INTEGER NOT NULL CHECK (position >= 0),
		due_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_stage ON tasks(stage_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee) WHERE assignee IS NOT NULL`,

	// History references the project only: entries outlive their targets.
	`CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL CHECK (seq > 0),
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		target_kind TEXT NOT NULL CHECK (target_kind IN ('plan', 'stage', 'task')),
		target_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('create', 'update', 'delete', 'reorder', 'status_change', 'reopen')),
		before_json TEXT,
		after_json TEXT,
		UNIQUE (project_id, seq)
	)`,

	// v2: estimates and project short IDs.
	`ALTER TABLE tasks ADD COLUMN estimated_hours REAL NOT NULL DEFAULT 0 CHECK (estimated_hours >= 0)`,
	`ALTER TABLE projects ADD COLUMN short_id TEXT NOT NULL DEFAULT ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_short_id ON projects(short_id) WHERE short_id != ''`,
}
