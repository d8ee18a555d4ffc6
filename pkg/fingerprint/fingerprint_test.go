package fingerprint_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/insightbot/subgate/pkg/fingerprint"
)

func TestGroup(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("-1001234567890:Crypto Signals"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, fingerprint.Group(-1001234567890, "Crypto Signals"))
}

func TestGroup_Deterministic(t *testing.T) {
	t.Parallel()

	a := fingerprint.Group(100, "Daily News")
	b := fingerprint.Group(100, "Daily News")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGroup_DistinguishesIdentity(t *testing.T) {
	t.Parallel()

	base := fingerprint.Group(100, "Daily News")
	assert.NotEqual(t, base, fingerprint.Group(101, "Daily News"))
	assert.NotEqual(t, base, fingerprint.Group(100, "Daily News Pro"))
}

func TestMatch(t *testing.T) {
	t.Parallel()

	stored := fingerprint.Group(200, "Alpha")
	assert.True(t, fingerprint.Match(stored, 200, "Alpha"))
	assert.False(t, fingerprint.Match(stored, 200, "Beta"))
	assert.False(t, fingerprint.Match(stored, 201, "Alpha"))
}
