package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fwojciec/bench"
	"google.golang.org/genai"
)

// Interface compliance checks.
var (
	_ bench.Provider = (*Client)(nil)
	_ bench.Streamer = (*Client)(nil)
)

// Client implements [bench.Provider] and [bench.Streamer] for the Google
// Gemini API.
type Client struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID used when a request does not name one.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient sets the HTTP client used by the underlying SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c.client = gc
	return c, nil
}

// Complete sends a non-streaming request.
func (c *Client) Complete(ctx context.Context, req bench.Request) (bench.Response, error) {
	if err := req.Validate(); err != nil {
		return bench.Response{}, fmt.Errorf("gemini: %w", err)
	}
	model := c.modelFor(req)
	resp, err := c.client.Models.GenerateContent(ctx, model, ConvertMessages(req.Messages), BuildConfig(req))
	if err != nil {
		return bench.Response{}, wrapError(err)
	}
	return ConvertResponse(req, resp), nil
}

// Stream sends a streaming request to the Gemini API and returns a
// [bench.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req bench.Request) (bench.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	seq := c.client.Models.GenerateContentStream(ctx, c.modelFor(req), ConvertMessages(req.Messages), BuildConfig(req))
	return NewStreamFromIter(ctx, seq, req), nil
}

func (c *Client) modelFor(req bench.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

// BuildConfig maps request parameters to a generation config. System
// blocks become the system instruction.
// Exported for testing.
func BuildConfig(req bench.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	if len(req.System) > 0 {
		config.SystemInstruction = &genai.Content{Parts: convertParts(req.System)}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config
}

// ConvertMessages converts bench Messages to genai Contents.
// Exported for testing.
func ConvertMessages(msgs []bench.Message) []*genai.Content {
	result := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == bench.RoleAssistant {
			role = "model"
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: convertParts(m.Blocks),
		})
	}
	return result
}

func convertParts(blocks []bench.Block) []*genai.Part {
	parts := make([]*genai.Part, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, &genai.Part{Text: b.Text})
	}
	return parts
}

// ConvertResponse maps a complete response to a bench.Response.
// Exported for testing.
func ConvertResponse(req bench.Request, resp *genai.GenerateContentResponse) bench.Response {
	var out bench.Response
	var text strings.Builder
	if resp != nil {
		out.Model = resp.ModelVersion
		for _, cand := range resp.Candidates {
			appendText(&text, cand)
			if cand.FinishReason != "" {
				out.RawStopReason = string(cand.FinishReason)
				out.StopReason = mapFinishReason(cand.FinishReason)
			}
		}
	}
	out.Text = text.String()
	if out.StopReason == "" {
		out.StopReason = bench.StopEndTurn
		out.RawStopReason = "end_turn"
	}
	if resp != nil && resp.UsageMetadata != nil {
		out.Usage = ConvertUsage(resp.UsageMetadata)
	} else {
		out.Usage = bench.EstimateUsage(req, out.Text)
	}
	return out
}

// ConvertUsage normalizes Gemini usage metadata. PromptTokenCount includes
// cached tokens, so they are subtracted and the result clamped at zero.
// Exported for testing.
func ConvertUsage(md *genai.GenerateContentResponseUsageMetadata) bench.Usage {
	cached := int(md.CachedContentTokenCount)
	return bench.Usage{
		InputTokens:     max(0, int(md.PromptTokenCount)-cached),
		OutputTokens:    max(0, int(md.CandidatesTokenCount)),
		CacheReadTokens: max(0, cached),
	}
}

// appendText writes the non-thought text parts of cand to sb and reports
// whether any text was written.
func appendText(sb *strings.Builder, cand *genai.Candidate) bool {
	if cand == nil || cand.Content == nil {
		return false
	}
	var wrote bool
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		sb.WriteString(p.Text)
		wrote = true
	}
	return wrote
}

func mapFinishReason(r genai.FinishReason) bench.StopReason {
	switch r {
	case genai.FinishReasonStop:
		return bench.StopEndTurn
	case genai.FinishReasonMaxTokens:
		return bench.StopLength
	default:
		return bench.StopUnknown
	}
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &bench.ProviderError{
			Provider:   providerName,
			StatusCode: apiErr.Code,
			Type:       apiErr.Status,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &bench.ProviderError{Provider: providerName, Err: err}
}
