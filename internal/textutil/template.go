package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholders returns the names referenced as {name} in template, in order
// of appearance. Unbalanced braces are reported via ok=false.
func Placeholders(template string) (names []string, ok bool) {
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return names, !strings.ContainsRune(rest, '}')
		}
		if strings.ContainsRune(rest[:open], '}') {
			return names, false
		}
		end := strings.IndexAny(rest[open+1:], "{}")
		if end < 0 || rest[open+1+end] == '{' {
			return names, false
		}
		closeIdx := open + 1 + end
		names = append(names, rest[open+1:closeIdx])
		rest = rest[closeIdx+1:]
	}
}

// Expand substitutes {name} tokens with values. Unknown names are left as
// written so a caller can detect them.
func Expand(template string, values map[string]string) string {
	if !strings.ContainsRune(template, '{') {
		return template
	}
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		closeIdx := strings.IndexByte(rest[open:], '}')
		if closeIdx < 0 {
			b.WriteString(rest)
			break
		}
		closeIdx += open
		b.WriteString(rest[:open])
		name := rest[open+1 : closeIdx]
		if value, ok := values[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[open : closeIdx+1])
		}
		rest = rest[closeIdx+1:]
	}
	return b.String()
}

// PrettyTitle turns a file stem like "01_my-song" into "01 My Song".
func PrettyTitle(stem string) string {
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range stem {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return strings.TrimSpace(stem)
	}
	return cases.Title(language.Und).String(title)
}
