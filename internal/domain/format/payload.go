// Package format builds webhook payloads from feed records.
package format

import (
	"errors"
	"unicode/utf8"
)

// Sentinel kinds for format errors.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownTier     = errors.New("unknown raid tier")
)

// Platform limits, in characters.
const (
	DefaultFieldLimit       = 1024
	DefaultDescriptionLimit = 4096
	DefaultTitleLimit       = 256
)

// Field is a name/value pair rendered inside an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Author is the attribution shown above the title.
type Author struct {
	Name    string
	IconURL string
}

// Embed is a transport-neutral rich message block.
type Embed struct {
	Title       string
	URL         string
	Description string
	Fields      []Field
	ImageURL    string
	Author      *Author
	Footer      string
	Color       int
}

// Payload is one message delivered to every endpoint of a category.
type Payload struct {
	// Content is the plain text sent alongside the embeds.
	Content string
	// Mention is a role id that Content pings, if any.
	Mention string
	Embeds  []Embed
}

// Skipped names a record that could not be rendered.
type Skipped struct {
	Name string
	Err  error
}

// Truncate cuts s to at most limit characters on a rune boundary.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
