package bench

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so reports
// match any color scheme. A negative index means no color.
type Theme struct {
	Accent  int // Headings, progress bar
	Muted   int // Labels, secondary columns
	Success int // Improvements
	Warning int // Estimated usage, duplicated billing
	Error   int // Regressions, failures
	Border  int // Table borders
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Accent:  5,
		Muted:   8,
		Success: 2,
		Warning: 3,
		Error:   1,
		Border:  8,
	}
}
