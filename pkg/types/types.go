package types

import (
	"context"
	"time"
)

// Stage represents when a guardrail check runs relative to the model call.
type Stage string

const (
	PreCall  Stage = "pre_call"
	PostCall Stage = "post_call"
)

// Message roles accepted by the moderation endpoint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestContext represents the context for an in-flight request
type RequestContext struct {
	Context   context.Context
	RequestID string
	SessionID string
	IP        string
	Headers   map[string][]string
	Messages  []Message
	Metadata  map[string]interface{}
	Stage     Stage
	ProcessAt *time.Time
}

// Choice is a single model output in an OpenAI-style completion.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// CompletionResponse is the model output inspected by the post-call check.
// Only the first choice's content is examined and, on a block, rewritten.
type CompletionResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// LastMessageByRole returns the most recent message with the given role,
// or false when no such message exists.
func (r *RequestContext) LastMessageByRole(role string) (Message, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == role {
			return r.Messages[i], true
		}
	}
	return Message{}, false
}
