package generate

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pzero-labs/pzero/internal/domain"
	"github.com/pzero-labs/pzero/internal/extract"
	"github.com/pzero-labs/pzero/internal/llm"
	"github.com/pzero-labs/pzero/internal/prompt"
	"github.com/pzero-labs/pzero/internal/store"
)

// CompletionStreamer is the completion client seam used by the service.
// Implemented by llm.Client.
type CompletionStreamer interface {
	Chat(ctx context.Context, messages []llm.Message) iter.Seq2[*llm.Chunk, error]
}

// statusLabels are the three fixed pacing statuses emitted before any
// network activity. They signal UX phases, not backend state.
var statusLabels = [3]string{
	"📥 Got it, reading your instruction...",
	"🧠 Designing the project...",
	"⚙️ Generating code...",
}

// maxMarkerInstruction bounds how much of the instruction is carried into
// the project context, keeping context growth per turn small.
const maxMarkerInstruction = 120

// Service runs generation requests end to end.
type Service struct {
	client      CompletionStreamer
	repo        store.Repository
	statusDelay time.Duration
	logger      *slog.Logger
}

// NewService creates a generation service.
func NewService(client CompletionStreamer, repo store.Repository, statusDelay time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:      client,
		repo:        repo,
		statusDelay: statusDelay,
		logger:      logger,
	}
}

// Run executes one generation turn for an already-validated project and
// yields stream events in order: three statuses, the content fragments as
// they arrive, then exactly one done or error event. State is committed
// only after the upstream stream finishes cleanly; on any fault the
// project's transcript and file set are left untouched.
func (s *Service) Run(ctx context.Context, project *domain.Project, instruction string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, label := range statusLabels {
			if !yield(statusEvent(label)) {
				return
			}
			if !sleepCtx(ctx, s.statusDelay) {
				return
			}
		}

		messages := prompt.Build(project.Context, instruction)

		var full strings.Builder
		chunks := 0
		for chunk, err := range s.client.Chat(ctx, messages) {
			if err != nil {
				s.logger.Error("completion stream failed",
					"project_id", project.ProjectID,
					"chunks", chunks,
					"error", err,
				)
				yield(errorEvent(fmt.Sprintf("Error: %v", err)))
				return
			}
			chunks++
			full.WriteString(chunk.Content)
			if !yield(contentEvent(chunk.Content)) {
				return
			}
		}

		response := full.String()
		files := extract.Files(response)

		now := time.Now()
		userTurn, assistantTurn := domain.NewTurnPair(instruction, response, now)
		marker := contextMarker(instruction, now)

		if err := s.repo.CommitTurn(ctx, project.ProjectID, userTurn, assistantTurn, marker, files); err != nil {
			s.logger.Error("failed to commit generation turn",
				"project_id", project.ProjectID,
				"error", err,
			)
			yield(errorEvent("Error: failed to save generation result"))
			return
		}

		s.logger.Info("generation turn committed",
			"project_id", project.ProjectID,
			"chunks", chunks,
			"files", files.Len(),
			"response_length", len(response),
		)

		yield(doneEvent(files.Map()))
	}
}

// contextMarker is the short note appended to the project context after a
// successful generation. The full response is deliberately not carried.
func contextMarker(instruction string, at time.Time) string {
	if len(instruction) > maxMarkerInstruction {
		cut := maxMarkerInstruction
		// Back up to a rune boundary so the marker stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(instruction[cut]) {
			cut--
		}
		instruction = instruction[:cut] + "..."
	}
	return fmt.Sprintf("\n[%s] Generated project files for: %s", at.UTC().Format(time.RFC3339), instruction)
}

// sleepCtx pauses for d without blocking other requests; returns false if
// the caller went away first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
