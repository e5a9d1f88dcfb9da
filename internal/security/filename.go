// Package security guards identifiers that end up in output paths.
package security

import "strings"

// maxFilenameLen caps sanitised names so joined paths stay short.
const maxFilenameLen = 128

// SanitizeFilename makes a file name component from an arbitrary recording
// identifier. Characters other than ASCII letters, digits, dot, underscore
// and dash become a single underscore per run, and leading or trailing dots
// and underscores are trimmed so the result can never be "." or "..".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if isFilenameRune(r) {
			b.WriteRune(r)
			pending = false
			continue
		}
		if !pending {
			b.WriteByte('_')
			pending = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

func isFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}
