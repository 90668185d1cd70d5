package session

import (
	"time"
)

// DefaultMaxInactiveInterval is applied to newly created sessions when
// the store has no explicit default configured. 30 minutes.
const DefaultMaxInactiveInterval = 30 * time.Minute

// deltaEntry records one attribute change since the last save. A
// removed entry is a tombstone: it emits a DELETE on save and is
// distinct from the attribute simply being absent.
type deltaEntry struct {
	value   any
	removed bool
}

// Session is the in-memory representation of one stored session. It is
// not safe for concurrent mutation; the design confines each entity to
// a single request at a time, matching the storage layer's
// last-writer-wins behavior for concurrent saves of the same id.
type Session struct {
	id ID

	// previousID is the id last known to the backing store. It is set
	// by RotateID and stays set across repeated rotations until a save
	// commits the rename.
	previousID ID
	hasPrev    bool

	creationTime        time.Time
	lastAccessedTime    time.Time
	maxInactiveInterval time.Duration

	attributes map[string]any
	delta      map[string]deltaEntry

	isNew   bool
	changed bool
}

// NewSession creates a fresh, unsaved session with a random id.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		id:                  NewID(),
		creationTime:        now,
		lastAccessedTime:    now,
		maxInactiveInterval: DefaultMaxInactiveInterval,
		attributes:          make(map[string]any),
		delta:               make(map[string]deltaEntry),
		isNew:               true,
	}
}

// newStoredSession rehydrates a session from storage columns. Used by
// the row assembler; the result is not new and carries an empty delta.
func newStoredSession(id ID, creationTime, lastAccessedTime time.Time, maxInactive time.Duration) *Session {
	return &Session{
		id:                  id,
		creationTime:        creationTime,
		lastAccessedTime:    lastAccessedTime,
		maxInactiveInterval: maxInactive,
		attributes:          make(map[string]any),
		delta:               make(map[string]deltaEntry),
	}
}

// ID returns the current identifier in textual form.
func (s *Session) ID() string {
	return s.id.String()
}

// RotateID assigns a fresh random identifier and returns its textual
// form. The id the backing store knows is remembered so the next save
// renames the row; rotating twice before saving keeps the original
// stored id, not the intermediate one.
func (s *Session) RotateID() string {
	if !s.hasPrev {
		s.previousID = s.id
		s.hasPrev = true
	}
	s.id = NewID()
	s.changed = true
	return s.id.String()
}

// CreationTime reports when the session was first created. Never
// mutated after construction.
func (s *Session) CreationTime() time.Time {
	return s.creationTime
}

func (s *Session) LastAccessedTime() time.Time {
	return s.lastAccessedTime
}

// SetLastAccessedTime records a session access, sliding the expiry
// window forward.
func (s *Session) SetLastAccessedTime(t time.Time) {
	s.lastAccessedTime = t
	s.changed = true
}

func (s *Session) MaxInactiveInterval() time.Duration {
	return s.maxInactiveInterval
}

func (s *Session) SetMaxInactiveInterval(d time.Duration) {
	s.maxInactiveInterval = d
	s.changed = true
}

// ExpiryTime is always derived, never cached:
// lastAccessedTime + maxInactiveInterval.
func (s *Session) ExpiryTime() time.Time {
	return s.lastAccessedTime.Add(s.maxInactiveInterval)
}

// IsExpired reports whether the session's expiry time has passed.
func (s *Session) IsExpired() bool {
	return s.isExpiredAt(time.Now())
}

func (s *Session) isExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiryTime())
}

// Attribute returns the current value for name and whether it is set.
func (s *Session) Attribute(name string) (any, bool) {
	v, ok := s.attributes[name]
	return v, ok
}

// AttributeNames returns the names of all currently set attributes, in
// no particular order.
func (s *Session) AttributeNames() []string {
	names := make([]string, 0, len(s.attributes))
	for name := range s.attributes {
		names = append(names, name)
	}
	return names
}

// SetAttribute stores an attribute value and logs it in the delta.
// Only the principal-bearing attributes mark the session metadata
// changed; plain attribute writes are carried by the delta alone.
func (s *Session) SetAttribute(name string, value any) {
	s.attributes[name] = value
	s.delta[name] = deltaEntry{value: value}
	if name == PrincipalNameIndexName || name == SecurityContextAttribute {
		s.changed = true
	}
}

// RemoveAttribute drops an attribute and logs a tombstone so the next
// save deletes the row.
func (s *Session) RemoveAttribute(name string) {
	delete(s.attributes, name)
	s.delta[name] = deltaEntry{removed: true}
}

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool {
	return s.isNew
}

func (s *Session) isChanged() bool {
	return s.changed
}

// clearChangeFlags resets dirty state after a successful save. Only
// stores call this.
func (s *Session) clearChangeFlags() {
	s.isNew = false
	s.changed = false
	s.previousID = ID{}
	s.hasPrev = false
	s.delta = make(map[string]deltaEntry)
}

// consumeStoredID returns the id the backing store currently knows
// the session by, and marks any pending rename as committed.
func (s *Session) consumeStoredID() ID {
	if s.hasPrev {
		id := s.previousID
		s.previousID = ID{}
		s.hasPrev = false
		return id
	}
	return s.id
}
