package llm

import (
	"fmt"
	"strings"
)

// RenderPrompt substitutes {name} placeholders in template with vars.
// "{{" and "}}" produce literal braces. A placeholder with no value and an
// unbalanced brace are errors, so a broken template fails before any
// request is made.
func RenderPrompt(template string, vars map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("prompt template: unclosed '{' at offset %d", i)
			}
			name := template[i+1 : i+1+end]
			value, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("prompt template: no value for placeholder {%s}", name)
			}
			sb.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("prompt template: single '}' at offset %d", i)
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String(), nil
}
