package corpus

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/bench"
)

// NeedlePromptSize is the fixed length, in characters, of every needle
// prompt so that the parallel and sequential runs send equal work.
const NeedlePromptSize = 5000

// Needles are lines from Hamlet, Act I.
var Needles = []string{
	"Who's there?",
	"Long live the king!",
	"Not a mouse stirring.",
	"What, has this thing appear'd again to-night?",
	"Most like: it harrows me with fear and wonder.",
	"O, that this too too solid flesh would melt",
	"Frailty, thy name is woman!",
	"I know not 'seems.'",
	"My father's spirit in arms! all is not well",
	"A little more than kin, and less than kind.",
}

const needleTemplate = `Find the following exact text in the provided Shakespearean play and provide:
1. The exact location (Act, Scene, and approximate line context)
2. The surrounding dialogue (at least 3 lines before and after)
3. Which character speaks this line

The text to find is: "%s"

Please search through the entire document carefully and provide a detailed answer with context.`

// NeedlePrompt asks the model to locate needle, padded with spaces or
// truncated to exactly size characters.
func NeedlePrompt(needle string, size int) string {
	prompt := fmt.Sprintf(needleTemplate, needle)
	n := utf8.RuneCountInString(prompt)
	switch {
	case n < size:
		return prompt + strings.Repeat(" ", size-n)
	case n > size:
		return string([]rune(prompt)[:size])
	default:
		return prompt
	}
}

// HaystackSystemPrompt wraps the reference document for the throughput
// scenario.
func HaystackSystemPrompt(document string) string {
	return "You are a helpful AI assistant. Analyze the following Shakespearean text carefully.\n\n" + document
}

// ThroughputRequests builds one needle request per needle, all sharing the
// same document-bearing system prompt.
func ThroughputRequests(document string, needles []string, s Settings) []bench.Request {
	system := []bench.Block{{Text: HaystackSystemPrompt(document)}}
	reqs := make([]bench.Request, 0, len(needles))
	for _, needle := range needles {
		reqs = append(reqs, bench.Request{
			Model:     s.Model,
			System:    system,
			Messages:  []bench.Message{bench.UserText(NeedlePrompt(needle, NeedlePromptSize))},
			MaxTokens: s.maxTokens(),
		})
	}
	return reqs
}
