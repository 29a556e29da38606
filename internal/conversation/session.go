// Package conversation owns the per-user conversational state: ordered
// message history, active provider and generation settings, cumulative
// usage counters, and short-lived pending-input flags.
package conversation

import (
	"github.com/mpetrov/chatbridge/internal/provider"
)

// Session is the full per-user conversational and settings state.
type Session struct {
	// History is the ordered message log, oldest first. It never holds
	// system-role messages; the system prompt lives in SystemPrompt.
	History []provider.Message

	// Provider selects which backend handles the next turn.
	Provider provider.Provider

	// Model is the model identifier, meaningful only within Provider.
	Model string

	// SystemPrompt is the instruction sent ahead of the history. Empty
	// means no prompt is sent.
	SystemPrompt string

	// Temperature is the sampling temperature. Stored for both providers
	// but only transmitted to the primary one.
	Temperature float64

	// MaxTokens caps the completion length.
	MaxTokens int

	// Usage is the cumulative token count per provider. Both providers
	// always have an entry, defaulting to 0.
	Usage map[provider.Provider]int
}

// Defaults describes the session a user gets on first contact.
type Defaults struct {
	Provider     provider.Provider
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// newSession builds a fresh session from defaults.
func newSession(d Defaults) *Session {
	return &Session{
		History:      []provider.Message{},
		Provider:     d.Provider,
		Model:        d.Model,
		SystemPrompt: d.SystemPrompt,
		Temperature:  d.Temperature,
		MaxTokens:    d.MaxTokens,
		Usage:        zeroUsage(),
	}
}

// zeroUsage returns a usage map with every provider present at zero.
func zeroUsage() map[provider.Provider]int {
	usage := make(map[provider.Provider]int, len(provider.All()))
	for _, p := range provider.All() {
		usage[p] = 0
	}
	return usage
}

// clone returns a deep copy so callers can never mutate stored state.
func (s *Session) clone() Session {
	history := make([]provider.Message, len(s.History))
	copy(history, s.History)

	usage := make(map[provider.Provider]int, len(s.Usage))
	for p, tokens := range s.Usage {
		usage[p] = tokens
	}

	return Session{
		History:      history,
		Provider:     s.Provider,
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		Usage:        usage,
	}
}
