package utils

import (
	"fmt"
)

// FormatLargeNumber renders an amount with K/M/B suffixes for dashboard
// cards. Values below 1 keep full 8-decimal precision so dust amounts stay
// visible.
func FormatLargeNumber(value float64) string {
	if value < 0 {
		return "-" + FormatLargeNumber(-value)
	}
	switch {
	case value >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", value/1_000_000_000)
	case value >= 1_000_000:
		return fmt.Sprintf("%.2fM", value/1_000_000)
	case value >= 1_000:
		return fmt.Sprintf("%.2fK", value/1_000)
	case value >= 1:
		return fmt.Sprintf("%.2f", value)
	default:
		return fmt.Sprintf("%.8f", value)
	}
}
