package domain

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters (spaces, tabs, newlines).
var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanKeyword trims a keyword and collapses internal whitespace while
// keeping its case, since the cleaned form is what reaches the query prompt.
func CleanKeyword(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NormalizeKeyword normalizes a keyword string by:
// - Trimming leading/trailing whitespace
// - Converting to lowercase
// - Collapsing multiple whitespace characters into a single space
//
// Two subscriptions whose keywords normalize equally are merged.
func NormalizeKeyword(s string) string {
	return strings.ToLower(CleanKeyword(s))
}

// NormalizeEmail lowercases and trims an address for deduplication.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
