// Package fingerprint derives stable identity digests for managed
// groups. The digest pins a subscription to a specific group identity
// so a recycled chat ID with a different title does not inherit the
// previous owner's entitlement.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Group computes the identity digest for a managed group:
// hex(SHA-256("<group_id>:<title>")).
func Group(groupID int64, title string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d:%s", groupID, title))
	return hex.EncodeToString(sum[:])
}

// Match reports whether the stored digest still matches the group's
// current identity.
func Match(stored string, groupID int64, title string) bool {
	return stored == Group(groupID, title)
}
