package performance

import (
	"strconv"
	"strings"
)

// DefaultHours is the lookback window used when the requested one is invalid.
const DefaultHours = 24

// MaxHours is the longest accepted lookback window, ten years.
const MaxHours = 10 * 365 * 24

// NormalizeHours reads a window selector the way a lenient integer parse
// would: surrounding whitespace is ignored and the leading run of digits
// (after an optional sign) is used, so "12h" reads as 12. Anything that
// yields no digits, or a value outside 1..MaxHours, selects DefaultHours.
func NormalizeHours(s string) int {
	s = strings.TrimSpace(s)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return DefaultHours
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return DefaultHours
	}
	return ValidHours(n)
}

// ValidHours returns h, or DefaultHours when h is outside 1..MaxHours.
func ValidHours(h int) int {
	if h <= 0 || h > MaxHours {
		return DefaultHours
	}
	return h
}
