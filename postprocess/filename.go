package postprocess

import "strings"

// DefaultBaseFilename is used when the caller supplies nothing usable.
const DefaultBaseFilename = "image"

// maxBaseFilenameLen keeps generated names well under filesystem limits.
const maxBaseFilenameLen = 100

// SanitizeBaseFilename makes name safe to use as a file name stem. Every
// rune outside [A-Za-z0-9_-] becomes "_", so path separators and dots
// cannot survive. Empty input becomes DefaultBaseFilename.
func SanitizeBaseFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxBaseFilenameLen {
			break
		}
	}
	if b.Len() == 0 {
		return DefaultBaseFilename
	}
	return b.String()
}
