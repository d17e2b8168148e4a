package mem0

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

// Interface compliance check.
var _ bench.MemorySearcher = (*Client)(nil)

// Client is a Mem0 API client.
type Client struct {
	apiKey     string
	baseURL    string
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

// New creates a new Mem0 [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	c.baseURL = strings.TrimSuffix(c.baseURL, "/")
	return c
}

// Add stores the conversation history for userID. The service extracts
// facts from it asynchronously.
func (c *Client) Add(ctx context.Context, history []bench.Message, userID, version string) error {
	body := addRequest{
		Messages: make([]apiMessage, 0, len(history)),
		UserID:   userID,
		Version:  version,
	}
	for _, m := range history {
		body.Messages = append(body.Messages, apiMessage{Role: string(m.Role), Content: m.Text()})
	}
	resp, err := c.post(ctx, addPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Search returns the memories relevant to query. The response may be a
// bare list or an object with a "results" list.
func (c *Client) Search(ctx context.Context, query string, filter bench.MemoryFilter) ([]bench.MemoryItem, error) {
	resp, err := c.post(ctx, searchPath, searchRequest{
		Query:   query,
		Filters: searchFilters{UserID: filter.UserID},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &bench.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}
	memories, err := decodeMemories(data)
	if err != nil {
		return nil, &bench.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
	}

	items := make([]bench.MemoryItem, 0, len(memories))
	for _, m := range memories {
		items = append(items, bench.MemoryItem{ID: m.ID, Payload: m.payload(), Score: m.Score})
	}
	return items, nil
}

func decodeMemories(data []byte) ([]apiMemory, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []apiMemory
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped apiResults
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Results, nil
}

func (m apiMemory) payload() string {
	if m.Memory != "" {
		return m.Memory
	}
	if m.Data != nil {
		return m.Data.Memory
	}
	return ""
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("mem0: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("mem0: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &bench.ProviderError{Provider: providerName, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	return resp, nil
}

func parseHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	perr := &bench.ProviderError{Provider: providerName, StatusCode: resp.StatusCode}
	var body apiError
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Detail != "":
			perr.Message = body.Detail
		case body.Error != "":
			perr.Message = body.Error
		}
	}
	if perr.Message == "" {
		perr.Message = strings.TrimSpace(string(data))
	}
	return perr
}
