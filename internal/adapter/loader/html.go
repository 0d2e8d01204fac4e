package loader

import (
	"html"
	"regexp"
	"strings"
)

var (
	dropTags      = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags     = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces an HTML page to readable text, one block per line.
func StripHTML(content string) string {
	content = dropTags.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = blockTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
