package llm

import "context"

// Message roles understood by every chat backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams tunes text generation. Nil fields use backend defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ChatClient defines the standard interface for any chat-capable LLM backend.
//
// Chat blocks until the backend has produced a full completion for the given
// transcript. Implementations serialize in-flight generations, so a single
// client shared by concurrent episodes queues them internally.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
