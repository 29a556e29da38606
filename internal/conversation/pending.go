package conversation

import "log/slog"

// PendingState marks that the user's next free-text message should be
// consumed as a settings value rather than a chat turn. Pending states are
// transient: they live in memory only and expire after the store's TTL.
type PendingState string

const (
	// PendingSystemPrompt awaits a new system prompt.
	PendingSystemPrompt PendingState = "system_prompt"
	// PendingTemperature awaits a temperature value.
	PendingTemperature PendingState = "temperature"
	// PendingMaxTokens awaits a max-tokens value.
	PendingMaxTokens PendingState = "max_tokens"
)

// SetPendingState arms a pending-input flag for the user, restarting the
// TTL clock.
func (s *Store) SetPendingState(userID int64, state PendingState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[userID] = pendingEntry{state: state, setAt: s.now()}
	s.logger.Debug("pending state set",
		slog.Int64("user_id", userID),
		slog.String("state", string(state)))
}

// GetPendingState returns the user's pending flag, if any. An expired
// entry is evicted on read and reported as absent.
func (s *Store) GetPendingState(userID int64) (PendingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[userID]
	if !ok {
		return "", false
	}
	if s.now().Sub(entry.setAt) > s.pendingTTL {
		delete(s.pending, userID)
		return "", false
	}
	return entry.state, true
}

// ClearPendingState drops the user's pending flag, if any.
func (s *Store) ClearPendingState(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, userID)
}
