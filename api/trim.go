package api

import "strings"

// TrimToRect keeps at most maxHeight lines of at most maxWidth bytes each,
// marking every cut with "[...]".
func TrimToRect(s string, maxHeight int, maxWidth int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if len(line) > maxWidth {
			b.WriteString(line[:maxWidth])
			b.WriteString("[...]")
		} else {
			b.WriteString(line)
		}
	}
	return b.String()
}
