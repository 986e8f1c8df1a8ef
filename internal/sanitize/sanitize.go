// Package sanitize makes user-supplied identifiers safe to use as blob key
// segments and validates keys before they touch the filesystem.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxSegmentLength is the maximum length of a key segment.
	MaxSegmentLength = 64

	// HashSuffixLength is the length of the hash suffix added to truncated
	// segments: _<8-char-hash>.
	HashSuffixLength = 9

	// DefaultSegment is used when sanitization produces an empty result.
	DefaultSegment = "default"
)

// Segment sanitizes s for use as one segment of a blob key.
//
// ASCII letters, digits, '-' and '_' are kept with their case so tracker
// project keys such as "PROJ" survive unchanged. Anything else becomes '_';
// runs of '_' collapse and edge underscores are trimmed. Long results are
// truncated with a hash suffix.
//
//	"PROJ"         -> "PROJ"
//	"ana@acme.com" -> "ana_acme_com"
//	"../etc"       -> "etc"
//	"" or "!!!"    -> "default"
func Segment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_")
	if out == "" {
		return DefaultSegment
	}
	if len(out) > MaxSegmentLength {
		out = truncateWithHash(out)
	}
	return out
}

// truncateWithHash keeps distinct long inputs distinct after truncation.
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(hash[:])[:8]
	return strings.TrimRight(s[:MaxSegmentLength-HashSuffixLength], "_") + suffix
}
