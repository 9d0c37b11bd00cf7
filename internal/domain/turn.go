package domain

import (
	"time"
)

// Turn roles. Turns are appended in strict user/assistant pairs and never
// mutated afterwards.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one entry in a project's transcript.
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurnPair builds the user/assistant pair for one completed generation,
// both stamped at append time.
func NewTurnPair(instruction, response string, at time.Time) (ChatTurn, ChatTurn) {
	return ChatTurn{Role: RoleUser, Content: instruction, Timestamp: at},
		ChatTurn{Role: RoleAssistant, Content: response, Timestamp: at}
}
