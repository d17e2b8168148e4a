package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/fwojciec/bench"
	goopenai "github.com/sashabaranov/go-openai"
)

// Interface compliance checks.
var (
	_ bench.Provider = (*Client)(nil)
	_ bench.Streamer = (*Client)(nil)
)

// Client implements [bench.Provider] and [bench.Streamer] for an
// OpenAI-compatible API.
type Client struct {
	client *goopenai.Client
	model  string
	name   string
}

type options struct {
	baseURL    string
	httpClient *http.Client
	model      string
	name       string
}

// Option configures a [Client].
type Option func(*options)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithName sets the provider name reported in errors, e.g. "deepseek".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New creates a new [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	o := options{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		name:    defaultName,
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(o.baseURL, "/")
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  o.model,
		name:   o.name,
	}
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req bench.Request) (bench.Response, error) {
	if err := req.Validate(); err != nil {
		return bench.Response{}, fmt.Errorf("%s: %w", c.name, err)
	}
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return bench.Response{}, c.wrapError(err)
	}

	var out bench.Response
	out.Model = resp.Model
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = choice.Message.Content
		out.RawStopReason = string(choice.FinishReason)
		out.StopReason = mapFinishReason(choice.FinishReason)
	}
	out.Usage = convertUsage(req, resp.Usage, out.Text)
	return out, nil
}

// Stream sends a streaming chat completion request and returns a
// [bench.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req bench.Request) (bench.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	raw, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, c.wrapError(err)
	}
	return newStream(ctx, c, raw, req), nil
}

func (c *Client) buildRequest(req bench.Request, stream bool) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	out := goopenai.ChatCompletionRequest{
		Model:     model,
		Messages:  ConvertMessages(req),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
		if out.Temperature == 0 {
			// go-openai omits a zero temperature, which the server reads
			// as its default of 1.
			out.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if stream {
		out.Stream = true
		out.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}
	}
	return out
}

// ConvertMessages flattens the request into chat messages: the system
// blocks become one system message followed by the conversation.
// Exported for testing.
func ConvertMessages(req bench.Request) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if system := req.SystemText(); system != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == bench.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Text()})
	}
	return msgs
}

// ConvertUsage normalizes OpenAI usage: prompt_tokens includes cached
// tokens, so they are subtracted and the result clamped at zero.
// Exported for testing.
func ConvertUsage(u goopenai.Usage) bench.Usage {
	var cached int
	if u.PromptTokensDetails != nil {
		cached = max(0, u.PromptTokensDetails.CachedTokens)
	}
	return bench.Usage{
		InputTokens:     max(0, u.PromptTokens-cached),
		OutputTokens:    max(0, u.CompletionTokens),
		CacheReadTokens: cached,
	}
}

func convertUsage(req bench.Request, u goopenai.Usage, text string) bench.Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return bench.EstimateUsage(req, text)
	}
	return ConvertUsage(u)
}

func mapFinishReason(r goopenai.FinishReason) bench.StopReason {
	switch r {
	case goopenai.FinishReasonStop:
		return bench.StopEndTurn
	case goopenai.FinishReasonLength:
		return bench.StopLength
	default:
		return bench.StopUnknown
	}
}

func (c *Client) wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &bench.ProviderError{
			Provider:   c.name,
			StatusCode: apiErr.HTTPStatusCode,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &bench.ProviderError{
			Provider:   c.name,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Err:        err,
		}
	}
	return &bench.ProviderError{Provider: c.name, Err: err}
}
