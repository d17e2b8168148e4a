// Package mem0 implements [bench.MemorySearcher] against the hosted Mem0
// memory API.
package mem0

const (
	providerName   = "mem0"
	defaultBaseURL = "https://api.mem0.ai"
	addPath        = "/v1/memories/"
	searchPath     = "/v2/memories/search/"
)

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type addRequest struct {
	Messages []apiMessage `json:"messages"`
	UserID   string       `json:"user_id"`
	Version  string       `json:"version,omitempty"`
}

type searchRequest struct {
	Query   string        `json:"query"`
	Filters searchFilters `json:"filters"`
}

type searchFilters struct {
	UserID string `json:"user_id"`
}

// apiMemory covers both result shapes: v2 puts the text in "memory",
// older responses nest it under "data".
type apiMemory struct {
	ID     string   `json:"id"`
	Memory string   `json:"memory"`
	Score  float64  `json:"score"`
	Data   *apiData `json:"data,omitempty"`
}

type apiData struct {
	Memory string `json:"memory"`
}

type apiResults struct {
	Results []apiMemory `json:"results"`
}

type apiError struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}
