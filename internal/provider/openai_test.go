package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/chatbridge/internal/provider"
)

func TestOpenAIAdapterRequestShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hi there"}},
			},
			"usage": map[string]any{"total_tokens": 21},
		})
	}))
	defer server.Close()

	adapter := provider.NewOpenAIAdapter(provider.ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	reply, err := adapter.Converse(context.Background(), provider.ConverseParams{
		Model:        "gpt-3.5-turbo",
		SystemPrompt: "be terse",
		Temperature:  0.7,
		MaxTokens:    1000,
		History: []provider.Message{
			{Role: provider.RoleUser, Content: "first"},
			{Role: provider.RoleAssistant, Content: "second"},
		},
		UserText: "third",
	})
	require.NoError(t, err)

	assert.Equal(t, "hi there", reply.Text)
	assert.Empty(t, reply.Reasoning)
	assert.Equal(t, 21, reply.Tokens)

	assert.Equal(t, "gpt-3.5-turbo", captured["model"])
	assert.InDelta(t, 0.7, captured["temperature"], 1e-9)
	assert.EqualValues(t, 1000, captured["max_completion_tokens"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 4)

	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be terse", first["content"])

	last := messages[3].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "third", last["content"])
}

func TestOpenAIAdapterOmitsSystemMessageWhenPromptEmpty(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
			"usage": map[string]any{"total_tokens": 3},
		})
	}))
	defer server.Close()

	adapter := provider.NewOpenAIAdapter(provider.ClientConfig{APIKey: "k", BaseURL: server.URL})
	_, err := adapter.Converse(context.Background(), provider.ConverseParams{
		Model:    "gpt-3.5-turbo",
		UserText: "hello",
	})
	require.NoError(t, err)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestOpenAIAdapterTokenFallback(t *testing.T) {
	reply40 := strings.Repeat("x", 40)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// No usage field at all.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply40}},
			},
		})
	}))
	defer server.Close()

	adapter := provider.NewOpenAIAdapter(provider.ClientConfig{APIKey: "k", BaseURL: server.URL})
	reply, err := adapter.Converse(context.Background(), provider.ConverseParams{
		Model:    "gpt-3.5-turbo",
		UserText: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, reply.Tokens)
}

func TestOpenAIAdapterServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	history := []provider.Message{{Role: provider.RoleUser, Content: "earlier"}}
	adapter := provider.NewOpenAIAdapter(provider.ClientConfig{APIKey: "k", BaseURL: server.URL})
	reply, err := adapter.Converse(context.Background(), provider.ConverseParams{
		Model:    "gpt-3.5-turbo",
		History:  history,
		UserText: "hello",
	})

	require.Error(t, err)
	assert.True(t, provider.IsProviderError(err))
	assert.Contains(t, err.Error(), "primary")
	assert.Zero(t, reply.Tokens)

	// The caller's history must be untouched by the failed round trip.
	require.Len(t, history, 1)
	assert.Equal(t, "earlier", history[0].Content)
}

func TestOpenAIAdapterNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	adapter := provider.NewOpenAIAdapter(provider.ClientConfig{APIKey: "k", BaseURL: server.URL})
	_, err := adapter.Converse(context.Background(), provider.ConverseParams{
		Model:    "gpt-3.5-turbo",
		UserText: "hello",
	})
	require.Error(t, err)
	assert.True(t, provider.IsProviderError(err))
}
