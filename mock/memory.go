package mock

import (
	"context"

	"github.com/fwojciec/bench"
)

// Interface compliance check.
var _ bench.MemorySearcher = (*MemorySearcher)(nil)

// MemorySearcher is a test double for bench.MemorySearcher.
type MemorySearcher struct {
	SearchFn func(ctx context.Context, query string, filter bench.MemoryFilter) ([]bench.MemoryItem, error)
	AddFn    func(ctx context.Context, history []bench.Message, userID, version string) error
}

// Search delegates to SearchFn.
func (m *MemorySearcher) Search(ctx context.Context, query string, filter bench.MemoryFilter) ([]bench.MemoryItem, error) {
	return m.SearchFn(ctx, query, filter)
}

// Add delegates to AddFn.
func (m *MemorySearcher) Add(ctx context.Context, history []bench.Message, userID, version string) error {
	return m.AddFn(ctx, history, userID, version)
}
