package flowlog

import "strings"

// DefaultTruncateLimit is the default number of non-newline characters an
// upstream packet may carry before its log output is truncated.
const DefaultTruncateLimit = 350

const truncationMarker = "... (truncated)"

// Truncate applies the packet truncation rule used for upstream log output.
//
// Packets whose first non-whitespace character is '{' are assumed to be
// JSON and are returned unchanged, however long. For any other packet the
// characters are counted excluding newlines; if the count exceeds limit,
// only the first limit such characters are kept (newlines within the kept
// prefix are preserved) and the truncation marker is appended immediately
// after the last kept character.
func Truncate(s string, limit int) string {
	if strings.HasPrefix(strings.TrimLeft(s, " \t\r\n"), "{") {
		return s
	}

	visible := 0
	for _, r := range s {
		if r != '\n' {
			visible++
		}
	}
	if visible <= limit {
		return s
	}

	var b strings.Builder
	remaining := limit
	for _, r := range s {
		if r == '\n' {
			b.WriteRune(r)
			continue
		}
		if remaining == 0 {
			break
		}
		b.WriteRune(r)
		remaining--
	}
	b.WriteString(truncationMarker)
	return b.String()
}
