package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/bench"
)

// Interface compliance checks.
var (
	_ bench.Provider = (*Client)(nil)
	_ bench.Streamer = (*Client)(nil)
)

// Client implements [bench.Provider] and [bench.Streamer] for the Anthropic
// Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete sends a non-streaming request. A response without usage is
// given an estimate derived from the request and response text.
func (c *Client) Complete(ctx context.Context, req bench.Request) (bench.Response, error) {
	resp, err := c.do(ctx, req, false)
	if err != nil {
		return bench.Response{}, err
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return bench.Response{}, &bench.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        err,
		}
	}

	var text strings.Builder
	for _, b := range body.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	out := bench.Response{
		Text:  text.String(),
		Model: body.Model,
	}
	if body.StopReason != nil {
		out.RawStopReason = *body.StopReason
		out.StopReason = mapStopReason(*body.StopReason)
	}
	if body.Usage != nil {
		out.Usage = convertUsage(*body.Usage)
	} else {
		out.Usage = bench.EstimateUsage(req, out.Text)
	}
	return out, nil
}

// Stream sends a streaming request to the Anthropic Messages API and returns
// a [bench.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req bench.Request) (bench.Stream, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, resp.Body, req), nil
}

func (c *Client) do(ctx context.Context, req bench.Request, stream bool) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	body, err := c.buildRequestBody(req, stream)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &bench.ProviderError{Provider: providerName, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	return resp, nil
}

func (c *Client) buildRequestBody(req bench.Request, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := apiRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Stream:      stream,
		System:      convertBlocks(req.System),
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	return json.Marshal(apiReq)
}

// convertBlocks maps blocks to text content blocks, placing an ephemeral
// cache breakpoint on every block tagged with cache affinity. Returns nil
// for no blocks.
func convertBlocks(blocks []bench.Block) []apiContentBlock {
	if len(blocks) == 0 {
		return nil
	}
	result := make([]apiContentBlock, len(blocks))
	for i, b := range blocks {
		result[i] = apiContentBlock{Type: "text", Text: b.Text}
		if b.CacheAffinity {
			result[i].CacheControl = &apiCacheControl{Type: "ephemeral"}
		}
	}
	return result
}

func convertMessages(msgs []bench.Message) []apiMessage {
	result := make([]apiMessage, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, apiMessage{
			Role:    string(m.Role),
			Content: convertBlocks(m.Blocks),
		})
	}
	return result
}

// convertUsage maps API usage to the bench invariant. Anthropic already
// reports input_tokens net of cache reads and writes.
func convertUsage(u apiUsage) bench.Usage {
	usage := bench.Usage{
		InputTokens:  max(0, u.InputTokens),
		OutputTokens: max(0, u.OutputTokens),
	}
	if u.CacheReadInputTokens != nil {
		usage.CacheReadTokens = max(0, *u.CacheReadInputTokens)
	}
	if u.CacheCreationInputTokens != nil {
		usage.CacheWriteTokens = max(0, *u.CacheCreationInputTokens)
	}
	return usage
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &bench.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "failed to read body",
			Err:        err,
		}
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Type == "" {
		return &bench.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &bench.ProviderError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		Type:       apiErr.Error.Type,
		Message:    apiErr.Error.Message,
	}
}

func mapStopReason(raw string) bench.StopReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return bench.StopEndTurn
	case "max_tokens":
		return bench.StopLength
	default:
		return bench.StopUnknown
	}
}
