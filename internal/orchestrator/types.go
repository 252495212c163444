package orchestrator

import (
	"github.com/lexiqai/llm-gateway/internal/chat"
)

// Request is one StreamCompletion call
type Request struct {
	// History is sent after the system message exactly as given
	History      []chat.Message
	SystemPrompt string
	EndpointID   string
	Temperature  float64
	// MaxTokens is omitted from the backend request when not positive
	MaxTokens int
	// CorrelationID tags logs and metrics; generated when empty
	CorrelationID string
}

// ContentFunc receives content fragments in delivery order
type ContentFunc func(fragment string)

// ToolInvocation is a tool directive parsed from a round's text
type ToolInvocation struct {
	Name   string
	Params []string
}

// IsZero reports whether the text did not parse as an invocation
func (t ToolInvocation) IsZero() bool {
	return t.Name == ""
}

// runState is the per-call state mutated across rounds
type runState struct {
	messages           []chat.Message
	interactions       int
	lastToolUsed       string
	repeatedToolUseCnt int
	producedText       bool
}
