package manifest

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// RenderDescription renders a plugin's markdown description field to HTML,
// for display on the admin /plugins surface. Malformed markdown is never
// fatal: goldmark renders what it can and any conversion error falls back
// to the raw source text.
func RenderDescription(markdown string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return markdown
	}
	return buf.String()
}
