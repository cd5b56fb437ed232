// Package describe turns the indentation-structured text of an event detail
// page into a bulleted summary.
package describe

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// BulletIndent is the indentation, in characters, a line must exceed to be
// rendered as a bullet.
const BulletIndent = 2

// Bullet prefixes nested lines.
const Bullet = "* "

// Placeholder is used when the detail page could not be fetched.
const Placeholder = "No description provided"

// Normalize rewrites raw so that deeply indented lines become bullets, blank
// lines are dropped, and each paragraph break collapses to a single empty
// separator line.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		current := strings.TrimSpace(line)
		if current != "" {
			if indentation(line) > BulletIndent {
				out = append(out, Bullet+current)
			} else {
				out = append(out, current)
			}
		}

		last := i == len(lines)-1
		if !last && current != "" && strings.TrimSpace(lines[i+1]) == "" {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

// indentation counts the leading whitespace characters of line.
func indentation(line string) int {
	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	return utf8.RuneCountInString(line[:len(line)-len(rest)])
}
