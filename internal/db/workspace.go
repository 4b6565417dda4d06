package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workspace is a working copy attached to a task. Relationship queries
// are keyed by workspace so callers holding only a workspace handle can
// reach the task hierarchy.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWorkspace inserts a new workspace.
func (p *ProjectDB) CreateWorkspace(ctx context.Context, w *Workspace) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(
		"INSERT INTO workspaces (id, task_id, name, created_at) VALUES (%s, %s, %s, %s)",
		p.Placeholder(1), p.Placeholder(2), p.Placeholder(3), p.Placeholder(4))
	_, err := p.ExecContext(ctx, query,
		w.ID[:], w.TaskID[:], w.Name, formatTime(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by ID. Returns nil if not found.
func (p *ProjectDB) GetWorkspace(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	query := fmt.Sprintf(
		"SELECT id, task_id, name, created_at FROM workspaces WHERE id = %s",
		p.Placeholder(1))
	row := p.QueryRowContext(ctx, query, id[:])

	var w Workspace
	var rawID, rawTask []byte
	var createdAt string
	if err := row.Scan(&rawID, &rawTask, &w.Name, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}

	wid, err := uuid.FromBytes(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse workspace id: %w", err)
	}
	w.ID = wid
	tid, err := uuid.FromBytes(rawTask)
	if err != nil {
		return nil, fmt.Errorf("parse workspace task id: %w", err)
	}
	w.TaskID = tid
	w.CreatedAt = parseTime(createdAt)

	return &w, nil
}

// ListWorkspaces returns the workspaces attached to a task, oldest first.
func (p *ProjectDB) ListWorkspaces(ctx context.Context, taskID uuid.UUID) ([]*Workspace, error) {
	query := fmt.Sprintf(`
		SELECT id, task_id, name, created_at FROM workspaces
		WHERE task_id = %s
		ORDER BY created_at ASC, id ASC`, p.Placeholder(1))
	rows, err := p.QueryContext(ctx, query, taskID[:])
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var workspaces []*Workspace
	for rows.Next() {
		var w Workspace
		var rawID, rawTask []byte
		var createdAt string
		if err := rows.Scan(&rawID, &rawTask, &w.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		wid, err := uuid.FromBytes(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse workspace id: %w", err)
		}
		w.ID = wid
		tid, err := uuid.FromBytes(rawTask)
		if err != nil {
			return nil, fmt.Errorf("parse workspace task id: %w", err)
		}
		w.TaskID = tid
		w.CreatedAt = parseTime(createdAt)
		workspaces = append(workspaces, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}

	return workspaces, nil
}
