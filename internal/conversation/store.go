package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mpetrov/chatbridge/internal/provider"
)

const (
	// DefaultMaxHistory is the default bound on stored history length.
	DefaultMaxHistory = 50

	// DefaultPendingTTL is how long a pending-input flag stays valid.
	DefaultPendingTTL = 300 * time.Second
)

// Store is the durable, keyed home of every user's Session plus the
// transient pending-input flags. All methods are safe for concurrent use;
// every mutating operation writes through to the configured persistence.
type Store struct {
	mu         sync.RWMutex
	sessions   map[int64]*Session
	pending    map[int64]pendingEntry
	persist    Persistence
	defaults   Defaults
	maxHistory int
	pendingTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type pendingEntry struct {
	state PendingState
	setAt time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for persistence and input warnings.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPendingTTL overrides the pending-input time-to-live.
func WithPendingTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.pendingTTL = ttl
	}
}

// WithClock overrides the time source, for TTL tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store backed by persist and loads any previously
// persisted sessions. A missing or unreadable state file is not an error:
// the store starts empty and logs what happened.
func NewStore(persist Persistence, defaults Defaults, maxHistory int, opts ...StoreOption) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	s := &Store{
		sessions:   make(map[int64]*Session),
		pending:    make(map[int64]pendingEntry),
		persist:    persist,
		defaults:   defaults,
		maxHistory: maxHistory,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	sessions, err := persist.Load()
	if err != nil {
		s.logger.Warn("failed to load persisted sessions, starting empty",
			slog.Any("error", err))
		return s
	}
	for userID, sess := range sessions {
		if sess.Usage == nil {
			sess.Usage = zeroUsage()
		}
		for _, p := range provider.All() {
			if _, ok := sess.Usage[p]; !ok {
				sess.Usage[p] = 0
			}
		}
		s.sessions[userID] = sess
	}

	return s
}

// Get returns the user's session, lazily materializing defaults on first
// contact. It never fails; the returned value is a copy.
func (s *Store) Get(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(userID).clone()
}

// getLocked returns the live session, creating a default one if needed.
// Callers must hold s.mu.
func (s *Store) getLocked(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = newSession(s.defaults)
		s.sessions[userID] = sess
		s.logger.Info("created default session",
			slog.Int64("user_id", userID),
			slog.String("provider", sess.Provider.String()))
	}
	return sess
}

// Update replaces the user's history and settings in one step. History is
// truncated to the newest maxHistory entries and system-role messages are
// dropped; existing usage counters are preserved untouched.
func (s *Store) Update(userID int64, history []provider.Message, p provider.Provider, model, systemPrompt string, temperature float64, maxTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := make([]provider.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == provider.RoleSystem {
			continue
		}
		trimmed = append(trimmed, msg)
	}
	if len(trimmed) > s.maxHistory {
		trimmed = trimmed[len(trimmed)-s.maxHistory:]
	}

	usage := zeroUsage()
	if existing, ok := s.sessions[userID]; ok && existing.Usage != nil {
		usage = existing.Usage
	}

	s.sessions[userID] = &Session{
		History:      trimmed,
		Provider:     p,
		Model:        model,
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		Usage:        usage,
	}

	s.saveLocked()
}

// Clear removes the user's entire session, usage included. A later Get
// recreates defaults.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[userID]; !ok {
		return
	}
	delete(s.sessions, userID)
	s.saveLocked()
}

// AddUsage adds tokens to the user's counter for p. Zero or negative
// amounts are suspicious no-ops: the counter only moves forward.
func (s *Store) AddUsage(userID int64, p provider.Provider, tokens int) {
	if tokens <= 0 {
		s.logger.Warn("ignoring non-positive usage delta",
			slog.Int64("user_id", userID),
			slog.String("provider", p.String()),
			slog.Int("tokens", tokens))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(userID)
	if sess.Usage == nil {
		sess.Usage = zeroUsage()
	}
	sess.Usage[p] += tokens

	s.saveLocked()
}

// GetUsage returns the cumulative token count for p, defaulting to 0.
func (s *Store) GetUsage(userID int64, p provider.Provider) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(userID).Usage[p]
}

// ResetUsage zeroes the counter for p without touching history.
func (s *Store) ResetUsage(userID int64, p provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(userID)
	if sess.Usage == nil {
		sess.Usage = zeroUsage()
	}
	sess.Usage[p] = 0

	s.saveLocked()
}

// saveLocked writes the full session map through to persistence. A write
// failure is logged and swallowed: the in-memory state stays authoritative
// for the rest of the process lifetime. Callers must hold s.mu.
func (s *Store) saveLocked() {
	if err := s.persist.Save(s.sessions); err != nil {
		s.logger.Error("failed to persist sessions, in-memory state remains authoritative",
			slog.Any("error", err))
	}
}
