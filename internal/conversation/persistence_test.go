package conversation_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mpetrov/chatbridge/internal/conversation"
	"github.com/mpetrov/chatbridge/internal/provider"
)

func TestFilePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	persist := conversation.NewFilePersistence(path)
	store := conversation.NewStore(persist, testDefaults(), 50)

	store.Update(123456, []provider.Message{
		{Role: provider.RoleUser, Content: "привет"},
		{Role: provider.RoleAssistant, Content: "hello"},
	}, provider.Reasoning, "claude-sonnet-4-5-20250929", "be brief", 0.3, 2000)
	store.AddUsage(123456, provider.Reasoning, 77)
	store.AddUsage(-42, provider.Primary, 5)

	// A second store reading the same file must see equivalent state,
	// with keys restored to their numeric form.
	reloaded := conversation.NewStore(conversation.NewFilePersistence(path), testDefaults(), 50)

	sess := reloaded.Get(123456)
	if len(sess.History) != 2 || sess.History[0].Content != "привет" {
		t.Errorf("history did not round-trip: %v", sess.History)
	}
	if sess.Provider != provider.Reasoning || sess.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("provider/model did not round-trip: %s/%s", sess.Provider, sess.Model)
	}
	if sess.SystemPrompt != "be brief" {
		t.Errorf("system prompt did not round-trip: %q", sess.SystemPrompt)
	}
	if sess.Temperature != 0.3 || sess.MaxTokens != 2000 {
		t.Errorf("generation params did not round-trip: %v/%v", sess.Temperature, sess.MaxTokens)
	}
	if got := reloaded.GetUsage(123456, provider.Reasoning); got != 77 {
		t.Errorf("reasoning usage = %d, want 77", got)
	}
	if got := reloaded.GetUsage(-42, provider.Primary); got != 5 {
		t.Errorf("negative user key did not round-trip, usage = %d, want 5", got)
	}
}

func TestFilePersistenceFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := conversation.NewStore(conversation.NewFilePersistence(path), testDefaults(), 50)

	store.Update(99, []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
		provider.Primary, "gpt-3.5-turbo", "", 0.7, 1000)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("state file is not a JSON object: %v", err)
	}

	entry, ok := raw["99"]
	if !ok {
		t.Fatalf("expected textual key \"99\", got keys %v", keys(raw))
	}
	for _, field := range []string{"messages", "model", "provider", "system_prompt", "temperature", "max_tokens", "tokens_used"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("state file entry missing field %q", field)
		}
	}

	// An empty system prompt is stored as null.
	if string(entry["system_prompt"]) != "null" {
		t.Errorf("empty system prompt stored as %s, want null", entry["system_prompt"])
	}

	var tokensUsed map[string]int
	if err := json.Unmarshal(entry["tokens_used"], &tokensUsed); err != nil {
		t.Fatalf("tokens_used does not decode: %v", err)
	}
	if tokensUsed["primary"] != 0 || tokensUsed["reasoning"] != 0 {
		t.Errorf("unexpected tokens_used contents: %v", tokensUsed)
	}
}

func TestFilePersistenceMissingFile(t *testing.T) {
	persist := conversation.NewFilePersistence(filepath.Join(t.TempDir(), "nope", "sessions.json"))

	sessions, err := persist.Load()
	if err != nil {
		t.Fatalf("missing file must load as empty, got error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected empty map, got %d sessions", len(sessions))
	}
}

func TestFilePersistenceCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	// The persistence layer reports the corruption...
	if _, err := conversation.NewFilePersistence(path).Load(); err == nil {
		t.Error("expected an error loading a corrupt file")
	}

	// ...and the store recovers by starting empty.
	store := conversation.NewStore(conversation.NewFilePersistence(path), testDefaults(), 50)
	sess := store.Get(1)
	if len(sess.History) != 0 {
		t.Errorf("expected a fresh session from a corrupt file, got %d messages", len(sess.History))
	}
}

func TestFilePersistenceSkipsBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	doc := `{
		"not-a-number": {"messages": [], "model": "m", "provider": "primary", "system_prompt": null, "temperature": 0.7, "max_tokens": 1000, "tokens_used": {}},
		"7": {"messages": [], "model": "m", "provider": "bogus", "system_prompt": null, "temperature": 0.7, "max_tokens": 1000, "tokens_used": {}},
		"8": {"messages": [], "model": "gpt-3.5-turbo", "provider": "primary", "system_prompt": null, "temperature": 0.7, "max_tokens": 1000, "tokens_used": {"primary": 12}}
	}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	sessions, err := conversation.NewFilePersistence(path).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected only the valid entry to survive, got %d", len(sessions))
	}

	sess, ok := sessions[8]
	if !ok {
		t.Fatal("expected entry for user 8")
	}
	// Partial tokens_used fills the missing provider with zero.
	if sess.Usage[provider.Primary] != 12 || sess.Usage[provider.Reasoning] != 0 {
		t.Errorf("unexpected usage after partial tokens_used: %v", sess.Usage)
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
