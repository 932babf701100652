// Package extract converts PDF, Word, Excel and CSV payloads into text
// and, where the layout allows, structured contact cards.
package extract

import (
	"strings"

	"github.com/ternarybob/prospector/internal/interfaces"
)

// Result is the outcome of a file extraction, shared with the miners
// through the interfaces package
type Result = interfaces.ExtractedFile

// minTextLength is the acceptance floor: a method's output shorter than
// this (after stripping control bytes) means try the next method.
const minTextLength = 50

// usableText strips control bytes and reports whether enough remains
func usableText(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	return cleaned, len(strings.TrimSpace(cleaned)) >= minTextLength
}
