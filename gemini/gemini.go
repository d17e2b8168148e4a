// Package gemini implements [bench.Provider] and [bench.Streamer] for the
// Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating between bench's
// domain types and the Gemini API types. Streaming uses the SDK's iter.Seq2
// iterator, wrapped into the pull-based [bench.Stream] interface. Gemini
// caches prefixes implicitly, so cache-affinity tags are not sent; cached
// tokens are still reported through UsageMetadata.
package gemini

const (
	providerName     = "gemini"
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 1024
)
