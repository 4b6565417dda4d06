package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db/driver"
)

// TrellisDir is the per-project data directory.
const TrellisDir = ".trellis"

// DBFileName is the project database file name inside TrellisDir.
const DBFileName = "trellis.db"

// TxRunner provides a transactional execution interface.
// This allows operations to run within a transaction context,
// ensuring atomicity of multi-table operations.
type TxRunner interface {
	// RunInTx executes the given function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	RunInTx(ctx context.Context, fn func(tx *TxOps) error) error
}

// TxOps provides database operations within a transaction.
// It wraps a driver.Tx to offer the same call shape as ProjectDB but
// executes everything on the transaction. The context is stored and
// used for all operations, so cancellation and timeouts propagate
// through the whole transaction.
type TxOps struct {
	tx      driver.Tx
	dialect driver.Dialect
	ctx     context.Context
	unique  func(error) bool
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, query, args...)
}

// Query executes a query that returns rows within the transaction.
func (t *TxOps) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.ctx, query, args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, query, args...)
}

// Context returns the context associated with this transaction.
func (t *TxOps) Context() context.Context {
	return t.ctx
}

// Dialect returns the database dialect.
func (t *TxOps) Dialect() driver.Dialect {
	return t.dialect
}

// Placeholder returns the appropriate placeholder for the dialect.
func (t *TxOps) Placeholder(index int) string {
	if t.dialect == driver.DialectPostgres {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

// IsUniqueViolation reports whether err is a unique constraint failure
// in this transaction's dialect.
func (t *TxOps) IsUniqueViolation(err error) bool {
	if t.unique == nil {
		return false
	}
	return t.unique(err)
}

// ProjectDB provides operations on a project database (.trellis/trellis.db).
type ProjectDB struct {
	*DB
}

// OpenProject opens the project database at {root}/.trellis/trellis.db
// using SQLite, running any pending migrations.
func OpenProject(root string) (*ProjectDB, error) {
	path := filepath.Join(root, TrellisDir, DBFileName)
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate("project"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate project db: %w", err)
	}

	return &ProjectDB{DB: db}, nil
}

// OpenProjectInMemory opens a migrated in-memory project database.
func OpenProjectInMemory() (*ProjectDB, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}

	if err := db.Migrate("project"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate project db: %w", err)
	}

	return &ProjectDB{DB: db}, nil
}

// OpenProjectWithDialect opens the project database with a specific dialect.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func OpenProjectWithDialect(dsn string, dialect driver.Dialect) (*ProjectDB, error) {
	db, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate("project"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate project db: %w", err)
	}

	return &ProjectDB{DB: db}, nil
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (p *ProjectDB) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txOps := &TxOps{
		tx:      tx,
		dialect: p.Dialect(),
		ctx:     ctx,
		unique:  p.Driver().IsUniqueViolation,
	}

	if err := fn(txOps); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Ensure ProjectDB implements TxRunner
var _ TxRunner = (*ProjectDB)(nil)

// ===== Projects =====

// Project is a container for tasks.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProject inserts a new project.
func (p *ProjectDB) CreateProject(ctx context.Context, proj *Project) error {
	if proj.ID == uuid.Nil {
		proj.ID = uuid.New()
	}
	if proj.CreatedAt.IsZero() {
		proj.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(
		"INSERT INTO projects (id, name, created_at) VALUES (%s, %s, %s)",
		p.Placeholder(1), p.Placeholder(2), p.Placeholder(3),
	)
	_, err := p.ExecContext(ctx, query,
		proj.ID[:], proj.Name, formatTime(proj.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID. Returns nil if not found.
func (p *ProjectDB) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := fmt.Sprintf(
		"SELECT id, name, created_at FROM projects WHERE id = %s",
		p.Placeholder(1),
	)
	row := p.QueryRowContext(ctx, query, id[:])

	var proj Project
	var rawID []byte
	var createdAt string
	if err := row.Scan(&rawID, &proj.Name, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	pid, err := uuid.FromBytes(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse project id: %w", err)
	}
	proj.ID = pid
	proj.CreatedAt = parseTime(createdAt)

	return &proj, nil
}

// ListProjects returns all projects ordered by creation time.
func (p *ProjectDB) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := p.QueryContext(ctx,
		"SELECT id, name, created_at FROM projects ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*Project
	for rows.Next() {
		var proj Project
		var rawID []byte
		var createdAt string
		if err := rows.Scan(&rawID, &proj.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		pid, err := uuid.FromBytes(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse project id: %w", err)
		}
		proj.ID = pid
		proj.CreatedAt = parseTime(createdAt)
		projects = append(projects, &proj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}
