package bench

import (
	"fmt"
	"strings"
)

// Request is one unit sent to a provider: a system prompt made of blocks
// followed by role-tagged messages.
// The provider uses its own defaults when fields are zero/nil.
type Request struct {
	Model       string // model ID, provider-specific; empty = provider default
	System      []Block
	Messages    []Message
	MaxTokens   int      // 0 = provider default
	Temperature *float64 // nil = provider default
}

// Validate checks universal constraints on Request.
// Provider implementations may apply additional provider-specific validation.
func (r Request) Validate() error {
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrValidation)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrValidation)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages: %w", ErrValidation)
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		case RoleSystem:
			return fmt.Errorf("message %d: system content belongs in Request.System: %w", i, ErrValidation)
		default:
			return fmt.Errorf("message %d: unknown role %q: %w", i, m.Role, ErrValidation)
		}
	}
	return nil
}

// SystemText returns the system blocks joined without separators.
func (r Request) SystemText() string {
	return joinBlocks(r.System)
}

// PromptText returns all request text in order, used to estimate input
// tokens when a provider omits usage.
func (r Request) PromptText() string {
	var sb strings.Builder
	sb.WriteString(r.SystemText())
	for _, m := range r.Messages {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.Text())
	}
	return sb.String()
}

// HasCacheAffinity reports whether any block in the request carries a
// cache-affinity tag.
func (r Request) HasCacheAffinity() bool {
	for _, b := range r.System {
		if b.CacheAffinity {
			return true
		}
	}
	for _, m := range r.Messages {
		for _, b := range m.Blocks {
			if b.CacheAffinity {
				return true
			}
		}
	}
	return false
}

// WithCachePrefix returns a copy of r whose last system block is tagged
// with cache affinity. The caller's slices are not modified.
func WithCachePrefix(r Request) Request {
	if len(r.System) == 0 {
		return r
	}
	system := make([]Block, len(r.System))
	copy(system, r.System)
	system[len(system)-1].CacheAffinity = true
	r.System = system
	return r
}

// StripCachePrefix returns a copy of r with every cache-affinity tag
// removed. Text is unchanged, so it serves as a non-cached baseline.
func StripCachePrefix(r Request) Request {
	system := make([]Block, len(r.System))
	for i, b := range r.System {
		system[i] = Block{Text: b.Text}
	}
	msgs := make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		blocks := make([]Block, len(m.Blocks))
		for j, b := range m.Blocks {
			blocks[j] = Block{Text: b.Text}
		}
		msgs[i] = Message{Role: m.Role, Blocks: blocks}
	}
	r.System = system
	r.Messages = msgs
	return r
}
