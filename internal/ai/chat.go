package ai

import (
	"context"
	"strings"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an ordered list of role-tagged messages plus generation
// parameters. Build it with NewChatRequest; it is not modified afterwards.
type ChatRequest struct {
	messages    []ChatMessage
	temperature float64
	maxTokens   int
}

func NewChatRequest(temperature float64, maxTokens int, messages ...ChatMessage) ChatRequest {
	return ChatRequest{
		messages:    append([]ChatMessage(nil), messages...),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (r ChatRequest) Messages() []ChatMessage {
	return append([]ChatMessage(nil), r.messages...)
}

func (r ChatRequest) Temperature() float64 {
	return r.temperature
}

func (r ChatRequest) MaxTokens() int {
	return r.maxTokens
}

// Prompt flattens the messages into a single "ROLE: content" prompt used by
// the secondary generation endpoint.
func (r ChatRequest) Prompt() string {
	parts := make([]string, 0, len(r.messages))
	for _, message := range r.messages {
		role := message.Role
		if role == "" {
			role = RoleUser
		}
		parts = append(parts, strings.ToUpper(role)+": "+message.Content)
	}
	return strings.Join(parts, "\n\n")
}

// ChatResult is either non-empty text produced by Model, or no content.
type ChatResult struct {
	Text  string
	Model string
}

func NoContent() ChatResult {
	return ChatResult{}
}

func (r ChatResult) HasContent() bool {
	return strings.TrimSpace(r.Text) != ""
}

// ChatInvoker issues one generation call against a concrete model. Failures
// of any kind are reported as NoContent.
type ChatInvoker interface {
	Invoke(ctx context.Context, model string, request ChatRequest) ChatResult
}
