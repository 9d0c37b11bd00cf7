// Package llm implements the streaming completion client.
package llm

// Message is one role-tagged message in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles accepted by the completion endpoint.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Chunk is one incremental text fragment from the completion stream.
type Chunk struct {
	Content string
}

// chatRequest is the wire format of the completion endpoint request body.
type chatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumCtx      int     `json:"num_ctx"`
}

// chatFragment is one newline-delimited JSON object of the response stream.
type chatFragment struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}
