package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2TextWithOptions(s, html2text.WithUnixLineBreaks())
}

// CellText converts the inner HTML of a table cell to text with one line per
// <br>, each line trimmed and blank lines dropped.
func CellText(s string) string {
	var lines []string
	for _, l := range strings.Split(ToText(s), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
