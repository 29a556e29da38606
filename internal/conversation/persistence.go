package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mpetrov/chatbridge/internal/provider"
)

// Persistence handles saving and loading the full session map.
type Persistence interface {
	Save(sessions map[int64]*Session) error
	Load() (map[int64]*Session, error)
}

// persistedMessage is the on-disk form of one history entry.
type persistedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// persistedSession is the on-disk form of one session. Map keys are the
// decimal form of the user ID, since JSON object keys can only be text.
type persistedSession struct {
	Messages     []persistedMessage `json:"messages"`
	Model        string             `json:"model"`
	Provider     string             `json:"provider"`
	SystemPrompt *string            `json:"system_prompt"`
	Temperature  float64            `json:"temperature"`
	MaxTokens    int                `json:"max_tokens"`
	TokensUsed   map[string]int     `json:"tokens_used"`
}

// FilePersistence stores the session map as a single JSON document,
// rewritten in full after every mutation.
type FilePersistence struct {
	path string
}

// NewFilePersistence creates a file-backed persistence handler writing to
// path. The parent directory is created on first save.
func NewFilePersistence(path string) *FilePersistence {
	return &FilePersistence{path: path}
}

// Save writes all sessions to the state file via a temp-file rename so a
// crash mid-write never leaves a truncated document behind.
func (f *FilePersistence) Save(sessions map[int64]*Session) error {
	out := make(map[string]persistedSession, len(sessions))
	for userID, sess := range sessions {
		out[strconv.FormatInt(userID, 10)] = toPersisted(sess)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save sessions: %w", err)
	}

	return nil
}

// Load reads the state file back into a session map. A missing file yields
// an empty map; entries with unparseable keys or providers are skipped.
func (f *FilePersistence) Load() (map[int64]*Session, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[int64]*Session), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var raw map[string]persistedSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	sessions := make(map[int64]*Session, len(raw))
	for key, ps := range raw {
		userID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		sess, err := fromPersisted(ps)
		if err != nil {
			continue
		}
		sessions[userID] = sess
	}

	return sessions, nil
}

func toPersisted(sess *Session) persistedSession {
	messages := make([]persistedMessage, 0, len(sess.History))
	for _, msg := range sess.History {
		messages = append(messages, persistedMessage{Role: string(msg.Role), Content: msg.Content})
	}

	tokensUsed := make(map[string]int, len(sess.Usage))
	for p, tokens := range sess.Usage {
		tokensUsed[p.String()] = tokens
	}

	var systemPrompt *string
	if sess.SystemPrompt != "" {
		prompt := sess.SystemPrompt
		systemPrompt = &prompt
	}

	return persistedSession{
		Messages:     messages,
		Model:        sess.Model,
		Provider:     sess.Provider.String(),
		SystemPrompt: systemPrompt,
		Temperature:  sess.Temperature,
		MaxTokens:    sess.MaxTokens,
		TokensUsed:   tokensUsed,
	}
}

func fromPersisted(ps persistedSession) (*Session, error) {
	p, err := provider.Parse(ps.Provider)
	if err != nil {
		return nil, err
	}

	history := make([]provider.Message, 0, len(ps.Messages))
	for _, msg := range ps.Messages {
		history = append(history, provider.Message{Role: provider.Role(msg.Role), Content: msg.Content})
	}

	usage := zeroUsage()
	for name, tokens := range ps.TokensUsed {
		if parsed, parseErr := provider.Parse(name); parseErr == nil {
			usage[parsed] = tokens
		}
	}

	systemPrompt := ""
	if ps.SystemPrompt != nil {
		systemPrompt = *ps.SystemPrompt
	}

	return &Session{
		History:      history,
		Provider:     p,
		Model:        ps.Model,
		SystemPrompt: systemPrompt,
		Temperature:  ps.Temperature,
		MaxTokens:    ps.MaxTokens,
		Usage:        usage,
	}, nil
}

// NoopPersistence keeps nothing. Useful for tests and ephemeral runs.
type NoopPersistence struct{}

// Save implements Persistence.
func (NoopPersistence) Save(map[int64]*Session) error {
	return nil
}

// Load implements Persistence.
func (NoopPersistence) Load() (map[int64]*Session, error) {
	return make(map[int64]*Session), nil
}
