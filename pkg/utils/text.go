// Package utils provides shared utilities for text, math, retries, and logging.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
// The cut never splits a UTF-8 sequence. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// MeaningfulLength returns the number of runes in s after trimming surrounding whitespace.
func MeaningfulLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
