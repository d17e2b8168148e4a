package bench

import "strings"

// Block is a piece of prompt text. CacheAffinity marks the block as a
// stable prefix eligible for server-side reuse across calls; providers
// without explicit prefix caching ignore it.
type Block struct {
	Text          string
	CacheAffinity bool
}

// Message is an ordered sequence of blocks sent under one role.
type Message struct {
	Role   Role
	Blocks []Block
}

// Text returns the message blocks joined without separators.
func (m Message) Text() string {
	return joinBlocks(m.Blocks)
}

// UserText returns a single-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{{Text: text}}}
}

// AssistantText returns a single-block assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []Block{{Text: text}}}
}

func joinBlocks(blocks []Block) string {
	switch len(blocks) {
	case 0:
		return ""
	case 1:
		return blocks[0].Text
	}
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.Text)
	}
	return sb.String()
}
