package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db/driver"
)

// Track selects how a task is executed.
type Track string

const (
	// TrackQuick is a single unstructured task. Default.
	TrackQuick Track = "quick"
	// TrackStaged runs through the phase catalog as child tasks.
	TrackStaged Track = "staged"
)

// ValidTrack reports whether tr is a known track.
func ValidTrack(tr Track) bool {
	switch tr {
	case TrackQuick, TrackStaged:
		return true
	}
	return false
}

// Status is the task workflow status.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// ErrPhaseOccupied is returned when an insert collides with an existing
// (parent_task_id, phase_key) row. The unique index on that pair is the
// source of truth; callers translate this into their own error surface.
var ErrPhaseOccupied = errors.New("phase slot already occupied")

// sortableTime is RFC3339 with fixed-width nanoseconds so lexicographic
// order of stored strings matches chronological order.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sortableTime)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(sortableTime, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// Task is a row in the tasks table.
//
// PhaseKey is meaningful only when ParentTaskID is set; a task carrying
// both occupies one (parent, phase) slot. A parent may hold any number of
// children without a phase label.
type Task struct {
	ID                uuid.UUID  `json:"id"`
	ProjectID         uuid.UUID  `json:"project_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            Status     `json:"status"`
	Track             Track      `json:"track"`
	ParentWorkspaceID *uuid.UUID `json:"parent_workspace_id,omitempty"`
	ParentTaskID      *uuid.UUID `json:"parent_task_id,omitempty"`
	PhaseKey          *string    `json:"phase_key,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PhaseSlot returns the (parent, phase) slot this task occupies.
// ok is false for root and quick tasks.
func (t *Task) PhaseSlot() (parent uuid.UUID, key string, ok bool) {
	if t.ParentTaskID == nil || t.PhaseKey == nil {
		return uuid.Nil, "", false
	}
	return *t.ParentTaskID, *t.PhaseKey, true
}

// IsPhaseChild reports whether the task occupies a phase slot.
func (t *Task) IsPhaseChild() bool {
	_, _, ok := t.PhaseSlot()
	return ok
}

// IsRoot reports whether the task sits at the top of the hierarchy, with
// no parent and no phase label.
func (t *Task) IsRoot() bool {
	return t.ParentTaskID == nil && t.PhaseKey == nil
}

// taskColumns is the scan/select order used by every task query.
const taskColumns = "id, project_id, title, description, status, track, parent_workspace_id, parent_task_id, phase_key, created_at, updated_at"

// ===== Create =====

// CreateTask inserts a new task. Defaults are applied in place: a fresh
// UUID, quick track, todo status, and current timestamps.
// Returns ErrPhaseOccupied when the task's (parent, phase) slot is taken.
func (p *ProjectDB) CreateTask(ctx context.Context, t *Task) error {
	applyTaskDefaults(t)

	query := insertTaskSQL(p.Dialect(), false)
	_, err := p.ExecContext(ctx, query, insertTaskArgs(t)...)
	if err != nil {
		if p.IsUniqueViolation(err) {
			return fmt.Errorf("insert task %s: %w", t.ID, ErrPhaseOccupied)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// CreateTaskTx inserts a new task within a transaction.
func CreateTaskTx(tx *TxOps, t *Task) error {
	applyTaskDefaults(t)

	query := insertTaskSQL(tx.Dialect(), false)
	_, err := tx.Exec(query, insertTaskArgs(t)...)
	if err != nil {
		if tx.IsUniqueViolation(err) {
			return fmt.Errorf("insert task %s: %w", t.ID, ErrPhaseOccupied)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// InsertPhaseChildTx inserts a phase child, ignoring the row when its
// (parent, phase) slot is already occupied. Reports whether a row was
// actually written, which makes repeated and concurrent spawn passes
// converge on the same children.
func InsertPhaseChildTx(tx *TxOps, t *Task) (bool, error) {
	applyTaskDefaults(t)

	query := insertTaskSQL(tx.Dialect(), true)
	res, err := tx.Exec(query, insertTaskArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("insert phase child: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func applyTaskDefaults(t *Task) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Track == "" {
		t.Track = TrackQuick
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}

func insertTaskSQL(dialect driver.Dialect, orIgnore bool) string {
	if dialect == driver.DialectSQLite {
		verb := "INSERT"
		if orIgnore {
			verb = "INSERT OR IGNORE"
		}
		return verb + ` INTO tasks (` + taskColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}
	suffix := ""
	if orIgnore {
		suffix = " ON CONFLICT DO NOTHING"
	}
	return `INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)` + suffix
}

func insertTaskArgs(t *Task) []any {
	return []any{
		t.ID[:],
		t.ProjectID[:],
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Track),
		nullableID(t.ParentWorkspaceID),
		nullableID(t.ParentTaskID),
		nullableString(t.PhaseKey),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	}
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id[:]
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// ===== Read =====

// GetTask retrieves a task by ID. Returns nil if not found.
func (p *ProjectDB) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE id = %s", taskColumns, p.Placeholder(1))
	t, err := scanTask(p.QueryRowContext(ctx, query, id[:]))
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// GetParentTask returns the parent of the given task, or nil when the
// task is a root (or the parent row no longer exists).
func (p *ProjectDB) GetParentTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	// id = NULL matches nothing, so roots and unknown tasks fall out
	// as sql.ErrNoRows.
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE id = (SELECT parent_task_id FROM tasks WHERE id = %s)`,
		taskColumns, p.Placeholder(1))
	t, err := scanTask(p.QueryRowContext(ctx, query, id[:]))
	if err != nil {
		return nil, fmt.Errorf("get parent task: %w", err)
	}
	return t, nil
}

// GetChildTasks returns all children of a task in creation order.
func (p *ProjectDB) GetChildTasks(ctx context.Context, parentID uuid.UUID) ([]*Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE parent_task_id = %s
		ORDER BY created_at ASC, id ASC`, taskColumns, p.Placeholder(1))
	rows, err := p.QueryContext(ctx, query, parentID[:])
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return scanTaskRows(rows)
}

// GetChildTasksTx returns all children of a task in creation order,
// within a transaction.
func GetChildTasksTx(tx *TxOps, parentID uuid.UUID) ([]*Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE parent_task_id = %s
		ORDER BY created_at ASC, id ASC`, taskColumns, tx.Placeholder(1))
	rows, err := tx.Query(query, parentID[:])
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	return scanTaskRows(rows)
}

// GetTaskTx retrieves a task by ID within a transaction. Returns nil
// if not found.
func GetTaskTx(tx *TxOps, id uuid.UUID) (*Task, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE id = %s", taskColumns, tx.Placeholder(1))
	t, err := scanTask(tx.QueryRow(query, id[:]))
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// CountChildrenTx counts a task's children within a transaction.
func CountChildrenTx(tx *TxOps, parentID uuid.UUID) (int, error) {
	var n int
	row := tx.QueryRow(
		"SELECT COUNT(*) FROM tasks WHERE parent_task_id = "+tx.Placeholder(1),
		parentID[:])
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// ListOpts filters ListTasks.
type ListOpts struct {
	ProjectID    *uuid.UUID
	Status       Status
	Track        Track
	ParentTaskID *uuid.UUID
	Limit        int
	Offset       int
}

// ListTasks returns tasks matching opts, newest first, plus the total
// count before Limit/Offset are applied.
func (p *ProjectDB) ListTasks(ctx context.Context, opts ListOpts) ([]*Task, int, error) {
	var where []string
	var args []any
	idx := 1

	addClause := func(clause string, arg any) {
		where = append(where, fmt.Sprintf(clause, p.Placeholder(idx)))
		args = append(args, arg)
		idx++
	}

	if opts.ProjectID != nil {
		addClause("project_id = %s", (*opts.ProjectID)[:])
	}
	if opts.Status != "" {
		addClause("status = %s", string(opts.Status))
	}
	if opts.Track != "" {
		addClause("track = %s", string(opts.Track))
	}
	if opts.ParentTaskID != nil {
		addClause("parent_task_id = %s", (*opts.ParentTaskID)[:])
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + joinClauses(where)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM tasks" + whereSQL
	if err := p.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM tasks%s ORDER BY created_at DESC, id DESC", taskColumns, whereSQL)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	rows, err := p.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func joinClauses(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

// ===== Update =====

// UpdateTask persists title, description, status, and track. Hierarchy
// fields are fixed at creation; placement never changes afterwards.
func (p *ProjectDB) UpdateTask(ctx context.Context, t *Task) error {
	t.UpdatedAt = time.Now().UTC()

	query := fmt.Sprintf(`
		UPDATE tasks
		SET title = %s, description = %s, status = %s, track = %s, updated_at = %s
		WHERE id = %s`,
		p.Placeholder(1), p.Placeholder(2), p.Placeholder(3),
		p.Placeholder(4), p.Placeholder(5), p.Placeholder(6))

	res, err := p.ExecContext(ctx, query,
		t.Title, t.Description, string(t.Status), string(t.Track),
		formatTime(t.UpdatedAt), t.ID[:])
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, sql.ErrNoRows)
	}
	return nil
}

// ===== Delete =====

// DeleteTaskTx deletes a task row within a transaction. Child handling
// is the caller's policy; see hierarchy.Service.Delete.
func DeleteTaskTx(tx *TxOps, id uuid.UUID) error {
	res, err := tx.Exec("DELETE FROM tasks WHERE id = "+tx.Placeholder(1), id[:])
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete task %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ===== Stats =====

// TaskCounts aggregates task totals across the project.
type TaskCounts struct {
	Total         int
	ByStatus      map[string]int
	ByTrack       map[string]int
	Roots         int
	PhaseChildren int
}

// CountTasks tallies status, track, and placement totals in one pass.
// Roots are tasks with no parent; phase children hold a (parent, phase)
// slot. Parented tasks without a phase label count toward neither.
func (p *ProjectDB) CountTasks(ctx context.Context) (*TaskCounts, error) {
	rows, err := p.QueryContext(ctx, `SELECT status, track,
		CASE WHEN parent_task_id IS NULL THEN 1 ELSE 0 END,
		CASE WHEN parent_task_id IS NOT NULL AND phase_key IS NOT NULL THEN 1 ELSE 0 END,
		COUNT(*)
		FROM tasks
		GROUP BY 1, 2, 3, 4`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := &TaskCounts{
		ByStatus: make(map[string]int),
		ByTrack:  make(map[string]int),
	}
	for rows.Next() {
		var status, track string
		var isRoot, isPhased, n int
		if err := rows.Scan(&status, &track, &isRoot, &isPhased, &n); err != nil {
			return nil, fmt.Errorf("scan task counts: %w", err)
		}
		counts.Total += n
		counts.ByStatus[status] += n
		counts.ByTrack[track] += n
		if isRoot == 1 {
			counts.Roots += n
		}
		if isPhased == 1 {
			counts.PhaseChildren += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task counts: %w", err)
	}
	return counts, nil
}

// ===== Scanning =====

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var rawID, rawProject, rawWorkspace, rawParent []byte
	var status, track string
	var phaseKey sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&rawID, &rawProject, &t.Title, &t.Description,
		&status, &track, &rawWorkspace, &rawParent, &phaseKey,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return buildTask(&t, rawID, rawProject, rawWorkspace, rawParent,
		status, track, phaseKey, createdAt, updatedAt)
}

func scanTaskRows(rows *sql.Rows) ([]*Task, error) {
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		var t Task
		var rawID, rawProject, rawWorkspace, rawParent []byte
		var status, track string
		var phaseKey sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&rawID, &rawProject, &t.Title, &t.Description,
			&status, &track, &rawWorkspace, &rawParent, &phaseKey,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		task, err := buildTask(&t, rawID, rawProject, rawWorkspace, rawParent,
			status, track, phaseKey, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func buildTask(t *Task, rawID, rawProject, rawWorkspace, rawParent []byte,
	status, track string, phaseKey sql.NullString, createdAt, updatedAt string) (*Task, error) {

	id, err := uuid.FromBytes(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse task id: %w", err)
	}
	t.ID = id

	pid, err := uuid.FromBytes(rawProject)
	if err != nil {
		return nil, fmt.Errorf("parse project id: %w", err)
	}
	t.ProjectID = pid

	if len(rawWorkspace) > 0 {
		wid, err := uuid.FromBytes(rawWorkspace)
		if err != nil {
			return nil, fmt.Errorf("parse workspace id: %w", err)
		}
		t.ParentWorkspaceID = &wid
	}
	if len(rawParent) > 0 {
		par, err := uuid.FromBytes(rawParent)
		if err != nil {
			return nil, fmt.Errorf("parse parent task id: %w", err)
		}
		t.ParentTaskID = &par
	}
	if phaseKey.Valid {
		t.PhaseKey = &phaseKey.String
	}

	t.Status = Status(status)
	t.Track = Track(track)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	return t, nil
}
