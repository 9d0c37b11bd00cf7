package generate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/pzero-labs/pzero/internal/identity"
	"github.com/pzero-labs/pzero/internal/store"
)

// wsReadTimeout bounds how long the handler waits for the client's
// generate request after the upgrade.
const wsReadTimeout = 30 * time.Second

// wsRequest is the single message a client sends after connecting.
type wsRequest struct {
	ProjectID   string `json:"project_id"`
	Instruction string `json:"instruction"`
}

// HandleWebSocket handles GET /ws/generate. The client sends one JSON
// request message; the server streams the same event protocol as the HTTP
// endpoint, one JSON text message per event, and closes after the terminal
// event.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "generation ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req, err := readWSRequest(ctx, ws)
	if err != nil {
		slog.Debug("websocket request read failed", "error", err, "user_id", userID)
		return
	}
	if req.Instruction == "" {
		writeWSEvent(ctx, ws, errorEvent("instruction is required"))
		return
	}

	project, err := h.repo.GetProject(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			writeWSEvent(ctx, ws, errorEvent("project not found"))
			return
		}
		slog.Error("failed to load project", "project_id", req.ProjectID, "error", err)
		writeWSEvent(ctx, ws, errorEvent("internal error"))
		return
	}
	if project.OwnerID != userID {
		writeWSEvent(ctx, ws, errorEvent("project not found"))
		return
	}

	if !h.rateLimiter.Allow(userID) {
		writeWSEvent(ctx, ws, errorEvent("rate limit exceeded"))
		return
	}

	slog.Info("generate request via websocket",
		"user_id", userID,
		"project_id", project.ProjectID,
		"instruction_length", len(req.Instruction),
	)

	for event := range h.service.Run(ctx, project, req.Instruction) {
		if !writeWSEvent(ctx, ws, event) {
			return
		}
		if event.Terminal() {
			return
		}
	}
}

func readWSRequest(ctx context.Context, ws *websocket.Conn) (wsRequest, error) {
	readCtx, cancel := context.WithTimeout(ctx, wsReadTimeout)
	defer cancel()

	var req wsRequest
	_, data, err := ws.Read(readCtx)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	return req, nil
}

func writeWSEvent(ctx context.Context, ws *websocket.Conn, event Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal websocket event", "error", err)
		return false
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}
