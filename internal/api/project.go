package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pzero-labs/pzero/internal/archive"
	"github.com/pzero-labs/pzero/internal/domain"
	"github.com/pzero-labs/pzero/internal/identity"
	"github.com/pzero-labs/pzero/internal/store"
)

// maxProjectNameLength bounds user-supplied project names.
const maxProjectNameLength = 120

// ProjectHandler handles project CRUD and archive download.
type ProjectHandler struct {
	repo store.Repository
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(repo store.Repository) *ProjectHandler {
	return &ProjectHandler{repo: repo}
}

// RegisterRoutes registers project routes.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/projects", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{projectID}", h.Get)
		r.Get("/{projectID}/turns", h.GetTurns)
		r.Get("/{projectID}/files", h.GetFiles)
		r.Get("/{projectID}/download", h.Download)
	})
}

type createProjectRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(name) > maxProjectNameLength {
		Error(w, http.StatusBadRequest, "name too long")
		return
	}

	now := time.Now()
	project := &domain.Project{
		ProjectID: uuid.NewString(),
		OwnerID:   userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.CreateProject(r.Context(), project); err != nil {
		slog.Error("failed to create project", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	slog.Info("project created", "project_id", project.ProjectID, "user_id", userID)
	JSON(w, http.StatusCreated, project)
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projects, err := h.repo.ListProjects(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list projects", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}

	JSON(w, http.StatusOK, projects)
}

// Get handles GET /api/projects/{projectID}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, project)
}

// GetTurns handles GET /api/projects/{projectID}/turns.
func (h *ProjectHandler) GetTurns(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}

	turns, err := h.repo.GetTurns(r.Context(), project.ProjectID)
	if err != nil {
		slog.Error("failed to load turns", "error", err, "project_id", project.ProjectID)
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if turns == nil {
		turns = []domain.ChatTurn{}
	}

	JSON(w, http.StatusOK, turns)
}

// GetFiles handles GET /api/projects/{projectID}/files.
func (h *ProjectHandler) GetFiles(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}

	files, err := h.repo.GetFileSet(r.Context(), project.ProjectID)
	if err != nil {
		slog.Error("failed to load file set", "error", err, "project_id", project.ProjectID)
		Error(w, http.StatusInternalServerError, "failed to load files")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"files":      files.Map(),
		"file_count": files.Len(),
	})
}

// Download handles GET /api/projects/{projectID}/download, returning the
// current file set as a zip archive.
func (h *ProjectHandler) Download(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadOwnedProject(w, r)
	if !ok {
		return
	}

	files, err := h.repo.GetFileSet(r.Context(), project.ProjectID)
	if err != nil {
		slog.Error("failed to load file set", "error", err, "project_id", project.ProjectID)
		Error(w, http.StatusInternalServerError, "failed to load files")
		return
	}

	var buf bytes.Buffer
	if err := archive.WriteZip(&buf, files); err != nil {
		slog.Error("failed to build archive", "error", err, "project_id", project.ProjectID)
		Error(w, http.StatusInternalServerError, "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, project.ArchiveName()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("failed to write archive response", "error", err, "project_id", project.ProjectID)
	}
}

// loadOwnedProject resolves the projectID URL param to a project owned by
// the caller, writing the error response itself when that fails.
func (h *ProjectHandler) loadOwnedProject(w http.ResponseWriter, r *http.Request) (*domain.Project, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	projectID := chi.URLParam(r, "projectID")
	project, err := h.repo.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			Error(w, http.StatusNotFound, "project not found")
			return nil, false
		}
		slog.Error("failed to load project", "error", err, "project_id", projectID)
		Error(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	// Ownership mismatch reads as not-found so project IDs stay unguessable.
	if project.OwnerID != userID {
		Error(w, http.StatusNotFound, "project not found")
		return nil, false
	}

	return project, true
}
