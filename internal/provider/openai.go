package provider

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultOpenAIBaseURL is the default endpoint for the primary provider.
const DefaultOpenAIBaseURL = "https://api.proxyapi.ru/openai/v1"

// OpenAIAdapter speaks the flat chat-completions wire shape: the full
// ordered message list goes out in one array, with the system prompt
// prepended as a synthetic system message.
type OpenAIAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIAdapter creates an adapter for the primary provider.
func NewOpenAIAdapter(cfg ClientConfig) *OpenAIAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIAdapter{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Converse implements the Adapter interface.
func (a *OpenAIAdapter) Converse(ctx context.Context, params ConverseParams) (Reply, error) {
	working := workingHistory(params.History, params.UserText)

	messages := make([]chatMessage, 0, len(working)+1)
	if params.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(RoleSystem), Content: params.SystemPrompt})
	}
	for _, msg := range working {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	request := chatRequest{
		Model:               params.Model,
		Messages:            messages,
		Temperature:         params.Temperature,
		MaxCompletionTokens: params.MaxTokens,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.apiKey)

	var response chatResponse
	url := joinURL(a.baseURL, "/chat/completions")
	if err := postJSON(ctx, a.httpClient, url, header, request, &response); err != nil {
		return Reply{}, &Error{Provider: Primary, Op: "request", Err: err}
	}

	if len(response.Choices) == 0 {
		return Reply{}, &Error{Provider: Primary, Op: "decode", Err: fmt.Errorf("response contains no choices")}
	}

	text := response.Choices[0].Message.Content
	return Reply{
		Text:   text,
		Tokens: finalizeTokens(text, response.Usage.TotalTokens),
	}, nil
}
