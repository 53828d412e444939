package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Context fields that participate in key derivation. Anything else a
// caller puts in the context map is ignored, not an error.
var keyContextFields = []string{
	"stage",
	"patient_type",
	"urgency",
	"intent_category",
}

// DeriveKey builds the fingerprint for a (text, context) pair.
//
// The text is trimmed and lowercased, the context is filtered to the
// allow-list and serialized with sorted keys so insertion order never
// changes the result. The concatenation is hashed with SHA-256 and
// truncated to 16 hex chars to keep keys small and uniform in size.
// Same inputs always produce the same key.
func DeriveKey(text string, context map[string]string) string {
	normalized := NormalizeText(text)

	var b strings.Builder
	b.WriteString(normalized)
	b.WriteByte('|')

	fields := make([]string, 0, len(keyContextFields))
	for _, f := range keyContextFields {
		if v, ok := context[f]; ok && v != "" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(context[f])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8]) // 16 hex chars
}

// NormalizeText applies the same normalization key derivation uses, so
// the pattern tier and the deriver agree on what "the same text" means.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
