package pgephemeral

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultNamePrefix is prepended to generated database names when no
// explicit prefix is configured.
const DefaultNamePrefix = "pgephemeral"

// Postgres truncates identifiers beyond NAMEDATALEN-1 bytes. The generated
// suffix is 33 bytes ("_" plus 32 hex chars), so prefixes are capped to keep
// the full name unambiguous.
const (
	maxIdentifierLen = 63
	maxPrefixLen     = maxIdentifierLen - 33
)

// GenerateName produces a collision-resistant database identifier of the
// form prefix_<32 hex chars>. The suffix is derived from a random UUID, so
// collisions within a single test-run population are negligible.
//
// The result uses only [a-z0-9_] and stays within the 63-byte identifier
// limit. Lowercase is deliberate: postgres folds unquoted identifiers to
// lowercase, so a name that slips into SQL unquoted still resolves to the
// same database.
func GenerateName(prefix string) string {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	prefix = sanitizePrefix(prefix)

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + suffix
}

// sanitizePrefix folds the prefix to lowercase, replaces characters that
// are not legal in an unquoted identifier, guarantees a non-digit first
// character, and truncates to leave room for the suffix.
func sanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(prefix) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	if len(out) > maxPrefixLen {
		out = out[:maxPrefixLen]
	}
	return out
}
