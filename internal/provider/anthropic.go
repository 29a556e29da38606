package provider

import (
	"context"
	"net/http"
	"strings"
)

const (
	// DefaultAnthropicBaseURL is the default endpoint for the reasoning
	// provider.
	DefaultAnthropicBaseURL = "https://api.proxyapi.ru/anthropic"

	// anthropicAPIVersion is the versioned wire format the adapter speaks.
	anthropicAPIVersion = "2023-06-01"

	// thinkingMinMaxTokens is the smallest max_tokens that leaves room for
	// both a thinking budget and a reply. Below it the request's max_tokens
	// is raised to thinkingRaisedMaxTokens.
	thinkingMinMaxTokens    = 1536
	thinkingRaisedMaxTokens = 2048

	// thinkingBudgetCap is the ceiling on the thinking budget regardless
	// of how large max_tokens is.
	thinkingBudgetCap = 1024

	// thinkingBudgetRatio is the share of max_tokens offered as thinking
	// budget before the cap applies.
	thinkingBudgetRatio = 0.66
)

// reasoningMarkers are the model-name substrings that enable extended
// thinking on the request.
var reasoningMarkers = []string{"sonnet-4-5", "sonnet-4.5"}

// AnthropicAdapter speaks the block-content wire shape: each message is a
// list of typed content blocks, the system prompt travels as a top-level
// field, and models carrying a reasoning marker get a thinking budget.
// Temperature is accepted but never transmitted on this wire.
type AnthropicAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicAdapter creates an adapter for the reasoning provider.
func NewAnthropicAdapter(cfg ClientConfig) *AnthropicAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	return &AnthropicAdapter{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
	}
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type blockMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type thinkingParam struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type messagesRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []blockMessage `json:"messages"`
	System    string         `json:"system,omitempty"`
	Thinking  *thinkingParam `json:"thinking,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Converse implements the Adapter interface.
func (a *AnthropicAdapter) Converse(ctx context.Context, params ConverseParams) (Reply, error) {
	working := workingHistory(params.History, params.UserText)

	messages := make([]blockMessage, 0, len(working))
	for _, msg := range working {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		messages = append(messages, blockMessage{
			Role:    string(msg.Role),
			Content: []contentBlock{{Type: "text", Text: msg.Content}},
		})
	}

	request := messagesRequest{
		Model:     params.Model,
		MaxTokens: params.MaxTokens,
		Messages:  messages,
		System:    params.SystemPrompt,
	}

	if wantsThinking(params.Model) {
		maxTokens, budget := thinkingBudget(params.MaxTokens)
		request.MaxTokens = maxTokens
		request.Thinking = &thinkingParam{Type: "enabled", BudgetTokens: budget}
	}

	header := http.Header{}
	header.Set("X-Api-Key", a.apiKey)
	header.Set("Anthropic-Version", anthropicAPIVersion)

	var response messagesResponse
	url := joinURL(a.baseURL, "/v1/messages")
	if err := postJSON(ctx, a.httpClient, url, header, request, &response); err != nil {
		return Reply{}, &Error{Provider: Reasoning, Op: "request", Err: err}
	}

	var textParts, thinkingParts []string
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "thinking":
			thinkingParts = append(thinkingParts, block.Thinking)
		}
	}

	usage := response.Usage
	tokens := usage.OutputTokens
	if tokens == 0 {
		tokens = usage.TotalTokens
	}
	if tokens == 0 {
		tokens = usage.InputTokens + usage.OutputTokens
	}

	// The token fallback keys off the raw reply, before the placeholder
	// masks an empty upstream response.
	text := strings.Join(textParts, "")
	tokens = finalizeTokens(text, tokens)
	if text == "" {
		text = EmptyReplyPlaceholder
	}

	return Reply{
		Text:      text,
		Reasoning: strings.Join(thinkingParts, "\n"),
		Tokens:    tokens,
	}, nil
}

// wantsThinking reports whether the model name carries a reasoning marker.
func wantsThinking(model string) bool {
	for _, marker := range reasoningMarkers {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}

// thinkingBudget computes the effective max_tokens and thinking budget for
// a reasoning-enabled request. The budget is always strictly below the
// effective max_tokens and never above thinkingBudgetCap.
func thinkingBudget(maxTokens int) (effectiveMax, budget int) {
	if maxTokens < thinkingMinMaxTokens {
		return thinkingRaisedMaxTokens, thinkingBudgetCap
	}
	budget = int(float64(maxTokens) * thinkingBudgetRatio)
	if budget > thinkingBudgetCap {
		budget = thinkingBudgetCap
	}
	return maxTokens, budget
}
