// Package dialogue orchestrates a user turn: it resolves the session,
// drives a provider adapter, and commits the results back to the store.
package dialogue

import (
	"github.com/mpetrov/chatbridge/internal/conversation"
	"github.com/mpetrov/chatbridge/internal/provider"
)

// SessionStore is the slice of the conversation store the orchestrator
// depends on.
type SessionStore interface {
	Get(userID int64) conversation.Session
	Update(userID int64, history []provider.Message, p provider.Provider, model, systemPrompt string, temperature float64, maxTokens int)
	Clear(userID int64)
	AddUsage(userID int64, p provider.Provider, tokens int)
	GetUsage(userID int64, p provider.Provider) int
	ResetUsage(userID int64, p provider.Provider)
	SetPendingState(userID int64, state conversation.PendingState)
	GetPendingState(userID int64) (conversation.PendingState, bool)
	ClearPendingState(userID int64)
}

// AdapterFactory builds the adapter for a provider. Injected so tests can
// substitute scripted adapters.
type AdapterFactory func(p provider.Provider) provider.Adapter
