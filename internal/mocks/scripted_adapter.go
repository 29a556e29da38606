// Package mocks provides test doubles shared across packages.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/mpetrov/chatbridge/internal/provider"
)

// Compile-time check that the mock satisfies the adapter contract.
var _ provider.Adapter = (*ScriptedAdapter)(nil)

// AdapterCall records one Converse invocation for later verification.
type AdapterCall struct {
	Params provider.ConverseParams
}

// ScriptedAdapter implements provider.Adapter with canned replies consumed
// in order, recording every call.
type ScriptedAdapter struct {
	mu      sync.Mutex
	replies []provider.Reply
	errs    []error
	calls   []AdapterCall
	next    int
}

// NewScriptedAdapter creates an empty scripted adapter. Queue outcomes
// with QueueReply and QueueError before use.
func NewScriptedAdapter() *ScriptedAdapter {
	return &ScriptedAdapter{}
}

// QueueReply appends a successful outcome to the script.
func (a *ScriptedAdapter) QueueReply(reply provider.Reply) *ScriptedAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, reply)
	a.errs = append(a.errs, nil)
	return a
}

// QueueError appends a failed outcome to the script.
func (a *ScriptedAdapter) QueueError(err error) *ScriptedAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, provider.Reply{})
	a.errs = append(a.errs, err)
	return a
}

// Converse implements provider.Adapter.
func (a *ScriptedAdapter) Converse(_ context.Context, params provider.ConverseParams) (provider.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, AdapterCall{Params: params})

	if a.next >= len(a.replies) {
		return provider.Reply{}, fmt.Errorf("scripted adapter exhausted after %d calls", a.next)
	}
	reply, err := a.replies[a.next], a.errs[a.next]
	a.next++
	if err != nil {
		return provider.Reply{}, err
	}
	return reply, nil
}

// Calls returns a copy of all recorded invocations.
func (a *ScriptedAdapter) Calls() []AdapterCall {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AdapterCall, len(a.calls))
	copy(out, a.calls)
	return out
}
