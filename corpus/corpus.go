// Package corpus holds the prompt material the benchmark scenarios send:
// needle-in-haystack questions, caching questions over a reference
// document, and a developer preference history.
package corpus

// DefaultMaxTokens caps output for every scenario request.
const DefaultMaxTokens = 1024

// Settings are the request parameters shared by the corpus builders.
type Settings struct {
	Model     string
	MaxTokens int // 0 = DefaultMaxTokens
}

func (s Settings) maxTokens() int {
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return DefaultMaxTokens
}
