package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// referencesHeading matches the line that opens a trailing references
// section. A line starting with 参考文献 opens it whatever follows, so
// "参考文献：" and "## 参考文献列表" match. The English words must fill the
// heading line, as in "## References" or "Bibliography:".
var referencesHeading = regexp.MustCompile(`(?im)\n#*\s*参考文献|\n#*[ \t]*(?:references|bibliography)[ \t]*#*[ \t]*[:：]?[ \t]*(?:\n|$)`)

// StripReferences returns the text before the first references heading,
// trimmed. Text without such a heading is returned trimmed and otherwise whole.
func StripReferences(text string) string {
	loc := referencesHeading.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:loc[0]])
}

// Rewrite renumbers every citation marker in body through oldToNew. Numbers
// missing from the map keep their original value. Markers are rejoined with
// bare commas, so "[3, 1]" becomes "[1,2]".
func Rewrite(body string, oldToNew map[int]int) string {
	return markerPattern.ReplaceAllStringFunc(body, func(marker string) string {
		inner := marker[1 : len(marker)-1]
		parts := strings.Split(inner, ",")
		for i, part := range parts {
			part = strings.TrimSpace(part)
			parts[i] = part
			old, err := strconv.Atoi(part)
			if err != nil {
				continue
			}
			if mapped, ok := oldToNew[old]; ok {
				parts[i] = strconv.Itoa(mapped)
			}
		}
		return "[" + strings.Join(parts, ",") + "]"
	})
}
