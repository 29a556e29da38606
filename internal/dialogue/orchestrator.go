package dialogue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mpetrov/chatbridge/internal/provider"
)

// ModelDefaults maps each provider to the model selected when the user
// switches to it.
type ModelDefaults map[provider.Provider]string

// Orchestrator handles user turns and settings mutations on top of the
// session store. It performs no retries: a failed turn is reported to the
// caller with no state committed, as if the turn never happened.
type Orchestrator struct {
	store   SessionStore
	factory AdapterFactory
	models  ModelDefaults
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for turn lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an orchestrator. store and factory are required;
// models supplies the per-provider default model used on switches.
func NewOrchestrator(store SessionStore, factory AdapterFactory, models ModelDefaults, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("orchestrator creation failed: store is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("orchestrator creation failed: adapter factory is required")
	}

	o := &Orchestrator{
		store:   store,
		factory: factory,
		models:  models,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Turn runs one conversational turn for the user. On success the user and
// assistant messages are appended to history, usage is accumulated, and the
// session is persisted. On failure nothing is committed.
func (o *Orchestrator) Turn(ctx context.Context, userID int64, text string) (provider.Reply, error) {
	turnID := uuid.NewString()
	sess := o.store.Get(userID)

	o.logger.Info("turn started",
		slog.String("turn_id", turnID),
		slog.Int64("user_id", userID),
		slog.String("provider", sess.Provider.String()),
		slog.String("model", sess.Model),
		slog.Int("history_length", len(sess.History)))

	adapter := o.factory(sess.Provider)
	reply, err := adapter.Converse(ctx, provider.ConverseParams{
		Model:        sess.Model,
		SystemPrompt: sess.SystemPrompt,
		Temperature:  sess.Temperature,
		MaxTokens:    sess.MaxTokens,
		History:      sess.History,
		UserText:     text,
	})
	if err != nil {
		o.logger.Error("turn failed",
			slog.String("turn_id", turnID),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return provider.Reply{}, fmt.Errorf("turn failed: %w", err)
	}

	history := append(sess.History,
		provider.Message{Role: provider.RoleUser, Content: text},
		provider.Message{Role: provider.RoleAssistant, Content: reply.Text},
	)
	o.store.AddUsage(userID, sess.Provider, reply.Tokens)
	o.store.Update(userID, history, sess.Provider, sess.Model, sess.SystemPrompt, sess.Temperature, sess.MaxTokens)

	o.logger.Info("turn completed",
		slog.String("turn_id", turnID),
		slog.Int64("user_id", userID),
		slog.Int("tokens", reply.Tokens),
		slog.Bool("has_reasoning", reply.Reasoning != ""))

	return reply, nil
}
