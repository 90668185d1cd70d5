package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIDRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewID()
		parsed, err := ParseID(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestIDStringIsCanonicalUUID(t *testing.T) {
	id := NewID()
	u, err := uuid.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(4), u.Version())
}

func TestParseIDKnownValue(t *testing.T) {
	// All-bits-set halves exercise the signed/unsigned boundary.
	id, err := ParseID("ffffffff-ffff-ffff-ffff-ffffffffffff")
	require.NoError(t, err)
	require.Equal(t, int64(-1), id.Hi)
	require.Equal(t, int64(-1), id.Lo)
	require.Equal(t, "ffffffff-ffff-ffff-ffff-ffffffffffff", id.String())
}

func TestParseIDMalformed(t *testing.T) {
	for _, bad := range []string{"", "abc", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"} {
		_, err := ParseID(bad)
		require.ErrorIs(t, err, ErrMalformedID)
	}
}

func TestNewIDsAreDistinct(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.False(t, seen[id])
		seen[id] = true
	}
}
