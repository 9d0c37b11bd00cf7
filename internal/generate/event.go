// Package generate orchestrates the streaming generation pipeline: prompt
// construction, completion streaming, file extraction, and the per-project
// session commit.
package generate

// Event types of the server-push stream protocol.
const (
	EventStatus  = "status"
	EventContent = "content"
	EventDone    = "done"
	EventError   = "error"
)

// Event is one unit of the generate stream. Exactly one done or error event
// terminates a stream; no events follow it.
type Event struct {
	Type      string            `json:"type"`
	Content   string            `json:"content,omitempty"`
	Files     map[string]string `json:"files,omitempty"`
	FileCount int               `json:"file_count,omitempty"`
}

func statusEvent(label string) Event {
	return Event{Type: EventStatus, Content: label}
}

func contentEvent(fragment string) Event {
	return Event{Type: EventContent, Content: fragment}
}

func doneEvent(files map[string]string) Event {
	return Event{Type: EventDone, Files: files, FileCount: len(files)}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Content: message}
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
