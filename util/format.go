package util

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most n runes, appending suffix when anything was cut
func Truncate(s string, n int, suffix string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + suffix
}

// ContainsAny reports whether s contains any of the substrings
func ContainsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
