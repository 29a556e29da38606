// Package provider translates provider-agnostic conversation state into
// requests against one of the two supported LLM backends and normalizes
// their responses back into a common reply shape.
package provider

import (
	"context"
	"fmt"
)

// Provider identifies one of the two supported backends.
type Provider int

const (
	// Primary is the flat chat-completions backend (OpenAI-compatible).
	Primary Provider = iota
	// Reasoning is the block-content backend with an optional extended
	// thinking side channel (Anthropic-compatible).
	Reasoning
)

// String returns the stable textual form used in logs and persisted state.
func (p Provider) String() string {
	switch p {
	case Primary:
		return "primary"
	case Reasoning:
		return "reasoning"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// Parse converts the textual form back into a Provider.
func Parse(s string) (Provider, error) {
	switch s {
	case "primary":
		return Primary, nil
	case "reasoning":
		return Reasoning, nil
	default:
		return Primary, fmt.Errorf("unknown provider %q", s)
	}
}

// All lists every supported provider, in display order.
func All() []Provider {
	return []Provider{Primary, Reasoning}
}

// Role identifies the sender of a conversation message.
type Role string

const (
	// RoleUser marks a message sent by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the model.
	RoleAssistant Role = "assistant"
	// RoleSystem marks a system prompt. System messages are never stored
	// in conversation history; the role exists only for request building.
	RoleSystem Role = "system"
)

// Message is a single entry in a conversation, immutable once created.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Reply is the normalized result of one successful round trip.
type Reply struct {
	// Text is the model's reply. Never empty on success; an empty upstream
	// response is replaced with EmptyReplyPlaceholder by the adapter.
	Text string

	// Reasoning is the extended-thinking output, when the backend produced
	// any. Empty for the Primary provider and for reasoning-less replies.
	Reasoning string

	// Tokens is the usage charged for the round trip. Always >= 1 on
	// success; when the backend reports no usable usage it is estimated
	// from the reply length.
	Tokens int
}

// ConverseParams carries a session's current state plus the new user text
// into a single adapter round trip. The adapter works on its own copy of
// History; the caller decides whether to merge the turn back.
type ConverseParams struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	History      []Message
	UserText     string
}

// Adapter performs one request/response round trip against a backend.
// Implementations must not mutate params.History.
type Adapter interface {
	Converse(ctx context.Context, params ConverseParams) (Reply, error)
}

// EmptyReplyPlaceholder is substituted when the block-content backend
// returns a response with no text blocks at all.
const EmptyReplyPlaceholder = "⚠️ The model returned an empty response"

// estimatedCharsPerToken is the character-per-token ratio used when the
// backend reports no usable usage figure.
const estimatedCharsPerToken = 4

// finalizeTokens applies the token fallback: a zero count with a non-empty
// reply is estimated from the reply length, and the result is never below 1.
func finalizeTokens(replyText string, tokens int) int {
	if tokens == 0 && replyText != "" {
		tokens = len(replyText) / estimatedCharsPerToken
	}
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// workingHistory returns a copy of history with the new user text appended.
func workingHistory(history []Message, userText string) []Message {
	working := make([]Message, 0, len(history)+1)
	working = append(working, history...)
	working = append(working, Message{Role: RoleUser, Content: userText})
	return working
}
