package generate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pzero-labs/pzero/internal/identity"
	"github.com/pzero-labs/pzero/internal/store"
)

// maxRequestBodySize is the maximum allowed generate request body (1MB).
const maxRequestBodySize = 1 << 20

// GenerateRequest is the POST body of a generate request.
type GenerateRequest struct {
	Instruction string `json:"instruction"`
}

// Handler serves the generate stream over HTTP and WebSocket.
type Handler struct {
	service     *Service
	repo        store.Repository
	rateLimiter *RateLimiter
}

// NewHandler creates a generate handler.
func NewHandler(service *Service, repo store.Repository, rateLimiter *RateLimiter) *Handler {
	return &Handler{
		service:     service,
		repo:        repo,
		rateLimiter: rateLimiter,
	}
}

// RegisterRoutes registers generation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/projects/{projectID}/generate", h.HandleGenerate)
	r.Get("/ws/generate", h.HandleWebSocket)
}

// HandleGenerate handles POST /api/projects/{projectID}/generate.
// The response is a stream of newline-delimited JSON events. Preconditions
// (identity, project existence, non-empty instruction) are rejected before
// the stream opens; faults after that surface as error events inside the
// stream payload.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	projectID := chi.URLParam(r, "projectID")
	project, err := h.repo.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			http.Error(w, `{"error": "project not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("failed to load project", "project_id", projectID, "error", err)
		http.Error(w, `{"error": "internal error"}`, http.StatusInternalServerError)
		return
	}
	if project.OwnerID != userID {
		http.Error(w, `{"error": "project not found"}`, http.StatusNotFound)
		return
	}

	if !h.rateLimiter.Allow(userID) {
		http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Instruction == "" {
		http.Error(w, `{"error": "instruction is required"}`, http.StatusBadRequest)
		return
	}

	slog.Info("generate request",
		"user_id", userID,
		"project_id", project.ProjectID,
		"instruction_length", len(req.Instruction),
	)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	encoder := json.NewEncoder(w)
	for event := range h.service.Run(r.Context(), project, req.Instruction) {
		if err := encoder.Encode(event); err != nil {
			slog.Warn("failed to write stream event", "error", err, "project_id", project.ProjectID)
			return
		}
		flusher.Flush()
		if event.Terminal() {
			return
		}
	}
}
