package corpus

import "github.com/fwojciec/bench"

// CachingQuestions are asked in order against the same reference document.
var CachingQuestions = []string{
	"Summarize the main events and characters introduced in Act I, Scene I.",
	"What is the relationship between Hamlet and King Claudius, and how does Hamlet feel about his mother's remarriage?",
	"Describe the appearance and behavior of the ghost that appears to the guards, and explain what Horatio thinks it might signify.",
}

// CachingSystemPrompt precedes the reference document.
const CachingSystemPrompt = "You are a helpful AI assistant."

// CachingRequests builds one request per question. The system prompt is
// two blocks, the instruction then the document, and carries no cache
// tags; bench.WithCachePrefix marks the document block for cached runs.
func CachingRequests(document string, questions []string, s Settings) []bench.Request {
	system := []bench.Block{
		{Text: CachingSystemPrompt},
		{Text: document},
	}
	reqs := make([]bench.Request, 0, len(questions))
	for _, q := range questions {
		reqs = append(reqs, bench.Request{
			Model:     s.Model,
			System:    system,
			Messages:  []bench.Message{bench.UserText(q)},
			MaxTokens: s.maxTokens(),
		})
	}
	return reqs
}
