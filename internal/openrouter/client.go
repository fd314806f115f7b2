// Package openrouter wraps the OpenAI-compatible chat-completions API served
// by OpenRouter. Each request is authorized with the calling user's own key,
// so the underlying API client is rebuilt per call instead of held globally.
package openrouter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"will-bot/pkg/ratelimiter"
)

const (
	// DefaultBaseURL is OpenRouter's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the single model every completion goes to.
	DefaultModel = "mistralai/mistral-small-3.2-24b-instruct:free"

	// SystemPrompt is prepended to every conversation.
	SystemPrompt = "You are an AI assistant named 'Will', and you will always be ready to respond " +
		"with short, accurate answers or long, detailed ones depending on the context. " +
		"The first thing you'll do in a chat is understanding the context and respond " +
		"with the same language the user is speaking. If you're asked, you'll answer " +
		"that your creator is lollo21, an italian indie developer."

	defaultTimeout = 60 * time.Second
)

type Opts struct {
	// BaseURL overrides DefaultBaseURL, mainly for tests.
	BaseURL string
	Model   string

	RlOpts ratelimiter.Opts
}

// Client issues single, non-streaming completion requests. It holds no
// credential of its own; the API key travels with each call.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client

	ratelimiter *ratelimiter.Ratelimiter
}

func NewClient(opts Opts) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},

		ratelimiter: ratelimiter.NewRatelimiter(opts.RlOpts),
	}
}

// CompleteChatData carries one user message and the credential to send it
// with.
type CompleteChatData struct {
	UserID  int64
	APIKey  string
	Content string
}

// CompleteChat sends the fixed system prompt plus the user's text and returns
// the first choice's content verbatim. Failures are returned as a
// *RequestError; no retry is attempted.
func (c *Client) CompleteChat(ctx context.Context, d *CompleteChatData) (string, error) {
	if !c.ratelimiter.Allow(ctx, d.UserID) {
		return "", ErrRateLimited
	}

	config := openai.DefaultConfig(d.APIKey)
	config.BaseURL = c.baseURL
	config.HTTPClient = c.httpClient
	api := openai.NewClientWithConfig(config)

	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: d.Content,
			},
		},
	})
	if err != nil {
		reqErr := classify(err)
		slog.ErrorContext(ctx, "completion request failed", "user_id", d.UserID, "kind", reqErr.Kind, "error", err)
		return "", reqErr
	}

	if len(resp.Choices) == 0 {
		return "", &RequestError{Kind: KindUnknown, Err: errors.New("no completion choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}
