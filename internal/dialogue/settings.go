package dialogue

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mpetrov/chatbridge/internal/conversation"
	"github.com/mpetrov/chatbridge/internal/provider"
)

// Temperature bounds accepted from free-text input. The stored field is an
// unconstrained float; these bounds mirror the presets exposed by the UI.
const (
	minTemperature = 0.0
	maxTemperature = 1.5
)

// SwitchProvider moves the user to p, resetting the model to p's default.
// History and usage counters are preserved.
func (o *Orchestrator) SwitchProvider(userID int64, p provider.Provider) {
	sess := o.store.Get(userID)
	model := o.models[p]
	o.store.Update(userID, sess.History, p, model, sess.SystemPrompt, sess.Temperature, sess.MaxTokens)

	o.logger.Info("provider switched",
		slog.Int64("user_id", userID),
		slog.String("provider", p.String()),
		slog.String("model", model))
}

// SetTemperature updates the sampling temperature.
func (o *Orchestrator) SetTemperature(userID int64, temperature float64) {
	sess := o.store.Get(userID)
	o.store.Update(userID, sess.History, sess.Provider, sess.Model, sess.SystemPrompt, temperature, sess.MaxTokens)
}

// SetMaxTokens updates the completion-length cap.
func (o *Orchestrator) SetMaxTokens(userID int64, maxTokens int) {
	sess := o.store.Get(userID)
	o.store.Update(userID, sess.History, sess.Provider, sess.Model, sess.SystemPrompt, sess.Temperature, maxTokens)
}

// SetSystemPrompt replaces the user's system prompt.
func (o *Orchestrator) SetSystemPrompt(userID int64, prompt string) {
	sess := o.store.Get(userID)
	o.store.Update(userID, sess.History, sess.Provider, sess.Model, prompt, sess.Temperature, sess.MaxTokens)
}

// Clear drops the user's whole session, usage included.
func (o *Orchestrator) Clear(userID int64) {
	o.store.Clear(userID)
}

// ResetStats zeroes the usage counter for one provider, leaving history
// and the other provider's counter alone.
func (o *Orchestrator) ResetStats(userID int64, p provider.Provider) {
	o.store.ResetUsage(userID, p)
}

// Stats returns a snapshot of per-provider cumulative usage.
func (o *Orchestrator) Stats(userID int64) map[provider.Provider]int {
	stats := make(map[provider.Provider]int, len(provider.All()))
	for _, p := range provider.All() {
		stats[p] = o.store.GetUsage(userID, p)
	}
	return stats
}

// AwaitInput arms a pending-input flag: the user's next free-text message
// will be consumed as the awaited settings value.
func (o *Orchestrator) AwaitInput(userID int64, state conversation.PendingState) {
	o.store.SetPendingState(userID, state)
}

// ResolvePending checks for an armed pending-input flag and, if present,
// consumes text as the awaited value. It reports whether the text was
// consumed; coercion failures are returned as errors with the flag cleared,
// never raised further.
func (o *Orchestrator) ResolvePending(userID int64, text string) (bool, error) {
	state, ok := o.store.GetPendingState(userID)
	if !ok {
		return false, nil
	}
	o.store.ClearPendingState(userID)

	switch state {
	case conversation.PendingSystemPrompt:
		o.SetSystemPrompt(userID, text)
		return true, nil

	case conversation.PendingTemperature:
		temperature, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return true, fmt.Errorf("temperature must be a number, got %q", text)
		}
		if temperature < minTemperature || temperature > maxTemperature {
			return true, fmt.Errorf("temperature must be between %.1f and %.1f", minTemperature, maxTemperature)
		}
		o.SetTemperature(userID, temperature)
		return true, nil

	case conversation.PendingMaxTokens:
		maxTokens, err := strconv.Atoi(text)
		if err != nil {
			return true, fmt.Errorf("max tokens must be an integer, got %q", text)
		}
		if maxTokens <= 0 {
			return true, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
		}
		o.SetMaxTokens(userID, maxTokens)
		return true, nil

	default:
		o.logger.Warn("unknown pending state dropped",
			slog.Int64("user_id", userID),
			slog.String("state", string(state)))
		return false, nil
	}
}
