// Package utils provides small shared helpers.
package utils

import (
	"math"
	"time"
)

// CalculateBackoff calculates the backoff duration for a given attempt.
// Attempt 0 waits initialDelay; each further attempt multiplies by factor,
// capped at maxDelay.
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration, factor float64) time.Duration {
	delay := float64(initialDelay) * math.Pow(factor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}

// Truncate shortens a string to at most n characters, appending an ellipsis
// when it cuts.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
