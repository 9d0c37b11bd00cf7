// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/pzero-labs/pzero/internal/domain"
)

// ErrProjectNotFound is returned when a project ID does not resolve to a row.
var ErrProjectNotFound = errors.New("project not found")

// Repository defines the interface for persisting projects and their
// generated state.
type Repository interface {
	// CreateProject inserts a new project with empty context and no turns.
	CreateProject(ctx context.Context, project *domain.Project) error

	// GetProject retrieves a project by ID. Returns ErrProjectNotFound if
	// the ID does not exist.
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)

	// ListProjects retrieves all projects owned by a user, newest first.
	ListProjects(ctx context.Context, ownerID string) ([]*domain.Project, error)

	// GetTurns retrieves the chat transcript for a project in append order.
	GetTurns(ctx context.Context, projectID string) ([]domain.ChatTurn, error)

	// GetFileSet retrieves the current virtual file set for a project.
	GetFileSet(ctx context.Context, projectID string) (*domain.FileSet, error)

	// CommitTurn atomically appends a user/assistant turn pair, extends the
	// project context with the generation marker, and replaces the stored
	// file set wholesale. Concurrent commits to the same project are
	// serialized; commits to different projects are independent.
	CommitTurn(ctx context.Context, projectID string, userTurn, assistantTurn domain.ChatTurn, contextAppend string, files *domain.FileSet) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
