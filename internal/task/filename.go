package task

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFilenameRunes = 100

// SanitizeFilename drops characters that are illegal in common file systems
// and caps the result at 100 runes.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		case r < 32 || r == utf8.RuneError || unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, ". ")
	if rs := []rune(out); len(rs) > maxFilenameRunes {
		out = strings.TrimRight(string(rs[:maxFilenameRunes]), ". ")
	}
	if out == "" {
		return "untitled"
	}
	return out
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
