package chat

import "time"

// Role is the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	IsError   bool      `json:"is_error,omitempty"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// WireMessage is the {role, content} pair sent to the completion backend
type WireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StreamOptions asks the backend to report usage in the terminal chunk
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// CompletionRequest is the JSON body of POST /v1/chat/completions
type CompletionRequest struct {
	Model         string         `json:"model,omitempty"`
	Messages      []WireMessage  `json:"messages"`
	Temperature   float64        `json:"temperature"`
	Stream        bool           `json:"stream"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// ToWire strips the local-only fields from a history
func ToWire(messages []Message) []WireMessage {
	wire := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, WireMessage{Role: m.Role, Content: m.Content})
	}
	return wire
}
