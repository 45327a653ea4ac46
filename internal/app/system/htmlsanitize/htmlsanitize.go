// Package htmlsanitize strips markup from user-written free text (bios,
// group descriptions) before it is stored.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// StripTags removes every tag and returns the remaining text, unescaped and trimmed.
// Content of script and style elements is dropped entirely.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	return StripTags(s) == strings.TrimSpace(s)
}
