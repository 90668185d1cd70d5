package session

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformedID reports a session identifier that cannot be parsed.
// Callers get it before any storage access happens.
var ErrMalformedID = fmt.Errorf("session: malformed session id")

// ID is a random 128-bit session identifier split into two signed
// 64-bit halves, which is how it is stored (SESSION_ID1, SESSION_ID2).
type ID struct {
	Hi int64
	Lo int64
}

// NewID generates a random (UUID v4) session identifier.
func NewID() ID {
	return idFromUUID(uuid.New())
}

// ParseID parses the canonical UUID textual form of a session id.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformedID, s)
	}
	return idFromUUID(u), nil
}

func idFromUUID(u uuid.UUID) ID {
	return ID{
		Hi: int64(binary.BigEndian.Uint64(u[:8])),
		Lo: int64(binary.BigEndian.Uint64(u[8:])),
	}
}

// String renders the canonical UUID textual form. It round-trips
// through ParseID.
func (id ID) String() string {
	var u uuid.UUID
	binary.BigEndian.PutUint64(u[:8], uint64(id.Hi))
	binary.BigEndian.PutUint64(u[8:], uint64(id.Lo))
	return u.String()
}

// IsZero reports whether the id is the zero value, used in place of
// null for the "no previous id" state.
func (id ID) IsZero() bool {
	return id.Hi == 0 && id.Lo == 0
}
