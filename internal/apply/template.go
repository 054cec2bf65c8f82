// Package apply renders the apply-command template and runs it.
//
// The template is a shell command line with one recognized placeholder,
// {config_file}, which is replaced by the literal configuration path.
// Brace rules follow format-string conventions: "{{" and "}}" produce a
// literal brace, and any other use of braces is a TemplateError.
//
// The rendered line is executed through the system shell. The path is
// inserted verbatim, unquoted: callers that accept paths or templates
// from untrusted sources must quote them themselves.
package apply

import (
	"fmt"
	"strings"
)

// Placeholder is the only name recognized inside braces.
const Placeholder = "config_file"

// TemplateError reports a malformed apply-command template.
type TemplateError struct {
	Template string
	Offset   int // byte offset of the offending brace
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("malformed apply template at offset %d: %s", e.Offset, e.Reason)
}

type segment struct {
	text        string
	placeholder bool
}

// Template is a parsed apply-command template.
type Template struct {
	segments []segment
}

// ParseTemplate parses an apply-command template.
func ParseTemplate(raw string) (*Template, error) {
	t := &Template{}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			if i+1 < len(raw) && raw[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return nil, &TemplateError{Template: raw, Offset: i, Reason: "unclosed '{'"}
			}
			name := raw[i+1 : i+1+end]
			if name == "" {
				return nil, &TemplateError{Template: raw, Offset: i, Reason: "empty placeholder '{}'"}
			}
			if name != Placeholder {
				return nil, &TemplateError{Template: raw, Offset: i, Reason: fmt.Sprintf("unknown placeholder {%s}", name)}
			}
			flush()
			t.segments = append(t.segments, segment{placeholder: true})
			i += end + 1
		case '}':
			if i+1 < len(raw) && raw[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &TemplateError{Template: raw, Offset: i, Reason: "single '}' encountered"}
		default:
			lit.WriteByte(raw[i])
		}
	}
	flush()

	return t, nil
}

// Render substitutes path for every placeholder.
func (t *Template) Render(path string) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.placeholder {
			b.WriteString(path)
		} else {
			b.WriteString(seg.text)
		}
	}
	return b.String()
}

// HasPlaceholder reports whether the template references {config_file}.
func (t *Template) HasPlaceholder() bool {
	for _, seg := range t.segments {
		if seg.placeholder {
			return true
		}
	}
	return false
}
