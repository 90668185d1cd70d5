package session

import (
	"context"
)

// Store defines how sessions are persisted and retrieved.
// Implementations (SQL, Redis) must remain stateless between calls.
//
// Lookups return (nil, nil) for both absent and expired sessions;
// expired sessions are deleted as a side effect of being found. Any
// storage failure is returned as an error, never folded into the
// not-found result.
type Store interface {
	// CreateSession returns a fresh unsaved session with the store's
	// default max-inactive interval applied.
	CreateSession(ctx context.Context) *Session

	// Save persists the session: full insert for new sessions,
	// otherwise only the recorded changes.
	Save(ctx context.Context, s *Session) error

	// FindByID loads one session by its textual id.
	FindByID(ctx context.Context, id string) (*Session, error)

	// DeleteByID removes one session and its attributes.
	DeleteByID(ctx context.Context, id string) error

	// FindByIndexNameAndIndexValue returns the sessions whose indexed
	// value matches, keyed by textual id. Only PrincipalNameIndexName
	// is supported; any other name yields an empty map, not an error.
	FindByIndexNameAndIndexValue(ctx context.Context, indexName, indexValue string) (map[string]*Session, error)

	// CleanUpExpiredSessions bulk-deletes every session whose expiry
	// time has passed and reports how many were removed.
	CleanUpExpiredSessions(ctx context.Context) (int64, error)
}
