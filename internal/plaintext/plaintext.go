// Package plaintext strips markdown decoration from model output.
// The backend is instructed to answer in plain text, but models still
// slip in emphasis markers, headings and bullets; Normalize removes the
// decoration while keeping every word of content.
package plaintext

import (
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`^#{1,6}\s*`)
	bulletRe  = regexp.MustCompile(`^[-*\x{2022}\x{2014}\x{2013}]\s+`)
)

// Normalize converts raw model output into plain text. It is
// deterministic and idempotent: marker characters are deleted, the text
// they wrapped is kept, and runs of blank lines collapse to one.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// Emphasis and inline-code markers are dropped outright.
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "`", "")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		s := strings.TrimSpace(line)
		s = headingRe.ReplaceAllString(s, "")
		s = bulletRe.ReplaceAllString(s, "")
		s = strings.TrimLeft(s, "*_")

		// Collapse repeated blank lines.
		if s == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, s)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
