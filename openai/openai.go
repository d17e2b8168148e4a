// Package openai implements [bench.Provider] and [bench.Streamer] for
// OpenAI-compatible chat completion APIs. The defaults target DeepSeek.
//
// It wraps github.com/sashabaranov/go-openai. Streaming requests ask for
// usage in the final chunk (stream_options.include_usage) so the terminal
// event carries measured counts. Prefix caching on these APIs is automatic,
// so cache-affinity tags are not sent.
package openai

const (
	// DefaultBaseURL is the DeepSeek API endpoint.
	DefaultBaseURL = "https://api.deepseek.com"
	// DefaultModel is the DeepSeek chat model.
	DefaultModel = "deepseek-chat"

	defaultName = "openai"
)
