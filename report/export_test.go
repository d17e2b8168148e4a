package report

// FormatNumber exports formatNumber for testing.
func FormatNumber(n int) string {
	return formatNumber(n)
}
