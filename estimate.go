package bench

import "github.com/rivo/uniseg"

// CharsPerToken is the rough text-length ratio used when a provider omits
// usage.
const CharsPerToken = 4

// DefaultEstimatedOutputTokens is assumed for a call whose response text
// is unavailable.
const DefaultEstimatedOutputTokens = 300

// EstimateTokens approximates the token count of text as one token per
// CharsPerToken user-perceived characters, never less than 1.
func EstimateTokens(text string) int {
	n := uniseg.GraphemeClusterCount(text) / CharsPerToken
	if n < 1 {
		return 1
	}
	return n
}

// EstimateUsage derives a Usage flagged as Estimated from the request text
// and the response text.
func EstimateUsage(req Request, responseText string) Usage {
	out := DefaultEstimatedOutputTokens
	if responseText != "" {
		out = EstimateTokens(responseText)
	}
	return Usage{
		InputTokens:  EstimateTokens(req.PromptText()),
		OutputTokens: out,
		Estimated:    true,
	}
}
