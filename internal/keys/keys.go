package keys

import "strings"

// Storage returns the key a logical key is stored under. The namespace is a
// fixed prefix, so distinct logical keys never collide within it.
func Storage(ns, key string) string {
	return ns + key
}

// Pattern returns the store-level glob for a caller pattern. Glob
// metacharacters in the namespace are escaped so the namespace only ever
// matches itself; the caller pattern is passed through untouched.
func Pattern(ns, pattern string) string {
	return EscapeGlob(ns) + pattern
}

// EscapeGlob backslash-escapes the characters Redis treats specially in
// MATCH patterns.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
