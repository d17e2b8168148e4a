package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// formatNumber adds comma separators to an integer.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// formatCost keeps six decimals; single benchmark runs cost fractions of
// a cent.
func formatCost(usd float64) string {
	return fmt.Sprintf("$%.6f", usd)
}

func formatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

func formatSignedPercent(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}
