package enhance

import "strings"

// ComposeMessage builds the channel post text: title, summary and the
// source link each in their own block. Empty parts are skipped.
func ComposeMessage(title, summary, link string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(title))
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	if link != "" {
		b.WriteString("\n\n")
		b.WriteString(link)
	}
	return b.String()
}
