package bubbletea

// Tokens returns the processed tokens counted from completed calls.
func Tokens(m Model) int {
	return m.tokens
}

// Lines returns the rendered call lines.
func Lines(m Model) []string {
	return m.lines
}
