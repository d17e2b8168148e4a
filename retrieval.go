package bench

import (
	"context"
	"fmt"
	"strings"
)

// Defaults applied by the context builders.
const (
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultTemperature  = 0.2
)

// MemoryItem is one fact returned by a memory search.
type MemoryItem struct {
	ID      string
	Payload string
	Score   float64
}

// MemoryFilter scopes a memory search.
type MemoryFilter struct {
	UserID string
}

// MemorySearcher is an external memory service. Search returns items
// ordered by relevance; an empty result is not an error.
type MemorySearcher interface {
	Search(ctx context.Context, query string, filter MemoryFilter) ([]MemoryItem, error)
	Add(ctx context.Context, history []Message, userID, version string) error
}

// ContextBuilder turns a user query into a request carrying some form of
// conversational context.
type ContextBuilder interface {
	Build(ctx context.Context, query string) (Request, error)
}

// PromptSettings are the request parameters shared by context builders.
// Zero values fall back to DefaultSystemPrompt and DefaultTemperature.
type PromptSettings struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
}

func (p PromptSettings) request(userText string) Request {
	system := p.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	temp := p.Temperature
	if temp == nil {
		t := DefaultTemperature
		temp = &t
	}
	return Request{
		Model:       p.Model,
		System:      []Block{{Text: system}},
		Messages:    []Message{UserText(userText)},
		MaxTokens:   p.MaxTokens,
		Temperature: temp,
	}
}

// FullHistory sends the entire interaction history with every query.
type FullHistory struct {
	PromptSettings
	History []Message
}

func (b FullHistory) Build(_ context.Context, query string) (Request, error) {
	text := fmt.Sprintf("Conversation History:\n%s\n\nUser Query: %s", FormatHistory(b.History), query)
	req := b.request(text)
	return req, req.Validate()
}

// MemoryRetrieval replaces the history with the facts a memory service
// considers relevant to the query.
type MemoryRetrieval struct {
	PromptSettings
	Searcher MemorySearcher
	UserID   string
}

func (b MemoryRetrieval) Build(ctx context.Context, query string) (Request, error) {
	items, err := b.Searcher.Search(ctx, query, MemoryFilter{UserID: b.UserID})
	if err != nil {
		return Request{}, fmt.Errorf("memory search: %w", err)
	}
	text := fmt.Sprintf("User Context (from memory):\n%s\n\nUser Query: %s", JoinMemories(items), query)
	req := b.request(text)
	return req, req.Validate()
}

// JoinMemories joins non-empty payloads with newlines. No items yield the
// empty string.
func JoinMemories(items []MemoryItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Payload != "" {
			parts = append(parts, it.Payload)
		}
	}
	return strings.Join(parts, "\n")
}

// FormatHistory renders messages as "ROLE: content" lines.
func FormatHistory(history []Message) string {
	var sb strings.Builder
	for i, m := range history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.ToUpper(string(m.Role)))
		sb.WriteString(": ")
		sb.WriteString(m.Text())
	}
	return sb.String()
}

// BuildRequests builds one request per query.
func BuildRequests(ctx context.Context, b ContextBuilder, queries []string) ([]Request, error) {
	reqs := make([]Request, 0, len(queries))
	for _, q := range queries {
		req, err := b.Build(ctx, q)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Interface compliance checks.
var (
	_ ContextBuilder = FullHistory{}
	_ ContextBuilder = MemoryRetrieval{}
)
