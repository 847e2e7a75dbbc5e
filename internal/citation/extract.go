// Package citation reconciles bracketed citation markers in generated review
// text with the article list the review was generated from.
//
// Articles are presented to the model numbered 1..N in search order. The
// model cites them as [n] or [n1,n2,...] in whatever order suits the prose.
// This package extracts those markers, keeps the valid ones in order of first
// appearance, renumbers them 1..k, rewrites the body to the new numbering and
// returns the cited articles in that order.
package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// markerPattern matches a citation marker such as [3] or [1, 4,7].
var markerPattern = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// ExtractReferences returns every integer found inside citation markers, in
// left-to-right order of appearance, including within-marker order. No
// validation is performed; duplicates and out-of-range values pass through.
// Digit runs that do not fit in an int are dropped.
func ExtractReferences(text string) []int {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	refs := make([]int, 0, len(matches))
	for _, m := range matches {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			refs = append(refs, n)
		}
	}
	return refs
}

// CountMarkers returns the number of citation markers in text.
func CountMarkers(text string) int {
	return len(markerPattern.FindAllStringIndex(text, -1))
}
