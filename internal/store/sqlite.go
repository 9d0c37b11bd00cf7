package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pzero-labs/pzero/internal/domain"
	"github.com/pzero-labs/pzero/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// Per-project mutexes serialize CommitTurn against the same project so
	// two concurrent generations cannot interleave their read-modify-write.
	// Commits to different projects proceed independently.
	locksMu      sync.Mutex
	projectLocks map[string]*sync.Mutex
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{
		db:           db,
		projectLocks: make(map[string]*sync.Mutex),
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(project_id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_project ON turns(project_id, id);

	CREATE TABLE IF NOT EXISTS files (
		project_id TEXT NOT NULL REFERENCES projects(project_id),
		position INTEGER NOT NULL,
		path TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (project_id, path)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateProject inserts a new project with empty context and no turns.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	query := `
	INSERT INTO projects (project_id, owner_id, name, context, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		project.ProjectID, project.OwnerID, project.Name, project.Context,
		project.CreatedAt.Unix(), project.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	query := `
		SELECT project_id, owner_id, name, context, created_at, updated_at,
		       (SELECT COUNT(*) FROM turns WHERE turns.project_id = projects.project_id),
		       (SELECT COUNT(*) FROM files WHERE files.project_id = projects.project_id)
		FROM projects WHERE project_id = ?`

	row := s.db.QueryRowContext(ctx, query, projectID)

	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project row: %w", err)
	}
	return project, nil
}

// ListProjects retrieves all projects owned by a user, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, ownerID string) ([]*domain.Project, error) {
	query := `
		SELECT project_id, owner_id, name, context, created_at, updated_at,
		       (SELECT COUNT(*) FROM turns WHERE turns.project_id = projects.project_id),
		       (SELECT COUNT(*) FROM files WHERE files.project_id = projects.project_id)
		FROM projects WHERE owner_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close project rows", "error", closeErr)
		}
	}()

	var projects []*domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var project domain.Project
	var createdAt, updatedAt int64

	err := row.Scan(
		&project.ProjectID, &project.OwnerID, &project.Name, &project.Context,
		&createdAt, &updatedAt, &project.TurnCount, &project.FileCount,
	)
	if err != nil {
		return nil, err
	}

	project.CreatedAt = time.Unix(createdAt, 0)
	project.UpdatedAt = time.Unix(updatedAt, 0)
	return &project, nil
}

// GetTurns retrieves the chat transcript for a project in append order.
func (s *SQLiteStore) GetTurns(ctx context.Context, projectID string) ([]domain.ChatTurn, error) {
	query := `SELECT role, content, created_at FROM turns WHERE project_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	var turns []domain.ChatTurn
	for rows.Next() {
		var turn domain.ChatTurn
		var createdAt int64
		if err := rows.Scan(&turn.Role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.Timestamp = time.Unix(createdAt, 0)
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}

// GetFileSet retrieves the current virtual file set for a project.
func (s *SQLiteStore) GetFileSet(ctx context.Context, projectID string) (*domain.FileSet, error) {
	query := `SELECT path, content FROM files WHERE project_id = ? ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close file rows", "error", closeErr)
		}
	}()

	fs := domain.NewFileSet()
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		fs.Put(path, content)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return fs, nil
}

// CommitTurn atomically persists one completed generation.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) CommitTurn(ctx context.Context, projectID string, userTurn, assistantTurn domain.ChatTurn, contextAppend string, files *domain.FileSet) error {
	unlock := s.lockProject(projectID)
	defer unlock()

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.commitTurnOnce(ctx, projectID, userTurn, assistantTurn, contextAppend, files)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("CommitTurn failed with SQLITE_BUSY, retrying",
				"project_id", projectID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("commit turn for %s: %w", projectID, err)
	}

	return nil
}

func (s *SQLiteStore) commitTurnOnce(ctx context.Context, projectID string, userTurn, assistantTurn domain.ChatTurn, contextAppend string, files *domain.FileSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			slog.Warn("failed to roll back commit transaction", "error", rollbackErr, "project_id", projectID)
		}
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE projects SET context = context || ?, updated_at = ? WHERE project_id = ?`,
		contextAppend, time.Now().Unix(), projectID,
	)
	if err != nil {
		return fmt.Errorf("update project context: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// The handler validates project existence before the stream opens, so
		// hitting this mid-commit is a precondition violation, not a 404.
		return ErrProjectNotFound
	}

	insertTurn := `INSERT INTO turns (project_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	for _, turn := range []domain.ChatTurn{userTurn, assistantTurn} {
		if _, err := tx.ExecContext(ctx, insertTurn,
			projectID, turn.Role, turn.Content, turn.Timestamp.Unix(),
		); err != nil {
			return fmt.Errorf("insert %s turn: %w", turn.Role, err)
		}
	}

	// The new file set replaces the previous one wholesale, never merges.
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear file set: %w", err)
	}
	insertFile := `INSERT INTO files (project_id, position, path, content) VALUES (?, ?, ?, ?)`
	for i, path := range files.Paths() {
		content, _ := files.Get(path)
		if _, err := tx.ExecContext(ctx, insertFile, projectID, i, path, content); err != nil {
			return fmt.Errorf("insert file %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) lockProject(projectID string) func() {
	s.locksMu.Lock()
	mu, ok := s.projectLocks[projectID]
	if !ok {
		mu = &sync.Mutex{}
		s.projectLocks[projectID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
