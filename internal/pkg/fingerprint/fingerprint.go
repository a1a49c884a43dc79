// Package fingerprint derives stable dedup keys for one-shot notifications.
package fingerprint

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Key hashes the parts into a 32-character hex key. Parts are joined with a
// separator that cannot appear in ids or event names, so ("a", "bc") and
// ("ab", "c") differ.
func Key(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}
