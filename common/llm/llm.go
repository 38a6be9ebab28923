// Package llm is the boundary to the remote completion service. The rest of
// the code depends only on the Client contract; every transport failure,
// empty candidate list, or malformed response surfaces as a plain error.
package llm

import "context"

// Message is one role-tagged turn of a conversation transcript.
type Message struct {
	Role    string // "system", "user", "assistant"
	Name    string // Optional: participant name for multi-user conversations
	Content string
}

// Role constants for transcript turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client produces one completion for a transcript.
type Client interface {
	Complete(ctx context.Context, transcript []Message) (string, error)
	Model() string
}

// Config holds completion client configuration.
type Config struct {
	APIKey  string
	BaseURL string // Optional: custom API endpoint
	Model   string
}
