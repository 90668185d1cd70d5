package session

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"session-service/internal/db"
)

// Statement templates. %TABLE_NAME% is substituted with the configured
// table name; placeholders are rewritten for the postgres dialect.
const (
	createSessionSQL = `INSERT INTO %TABLE_NAME% (SESSION_ID1, SESSION_ID2, CREATION_TIME, LAST_ACCESS_TIME, MAX_INACTIVE_INTERVAL, EXPIRY_TIME, PRINCIPAL_NAME) ` +
		`VALUES (?, ?, ?, ?, ?, ?, ?)`

	createAttributeSQL = `INSERT INTO %TABLE_NAME%_ATTRIBUTES (SESSION_ID1, SESSION_ID2, ATTRIBUTE_NAME, ATTRIBUTE_BYTES) ` +
		`VALUES (?, ?, ?, ?)`

	getSessionSQL = `SELECT S.SESSION_ID1, S.SESSION_ID2, S.CREATION_TIME, S.LAST_ACCESS_TIME, S.MAX_INACTIVE_INTERVAL, SA.ATTRIBUTE_NAME, SA.ATTRIBUTE_BYTES ` +
		`FROM %TABLE_NAME% S ` +
		`LEFT OUTER JOIN %TABLE_NAME%_ATTRIBUTES SA ON S.SESSION_ID1 = SA.SESSION_ID1 AND S.SESSION_ID2 = SA.SESSION_ID2 ` +
		`WHERE S.SESSION_ID1 = ? AND S.SESSION_ID2 = ?`

	updateSessionSQL = `UPDATE %TABLE_NAME% SET SESSION_ID1 = ?, SESSION_ID2 = ?, LAST_ACCESS_TIME = ?, MAX_INACTIVE_INTERVAL = ?, EXPIRY_TIME = ?, PRINCIPAL_NAME = ? ` +
		`WHERE SESSION_ID1 = ? AND SESSION_ID2 = ?`

	updateAttributeSQL = `UPDATE %TABLE_NAME%_ATTRIBUTES SET ATTRIBUTE_BYTES = ? ` +
		`WHERE SESSION_ID1 = ? AND SESSION_ID2 = ? AND ATTRIBUTE_NAME = ?`

	deleteAttributeSQL = `DELETE FROM %TABLE_NAME%_ATTRIBUTES ` +
		`WHERE SESSION_ID1 = ? AND SESSION_ID2 = ? AND ATTRIBUTE_NAME = ?`

	deleteSessionSQL = `DELETE FROM %TABLE_NAME% WHERE SESSION_ID1 = ? AND SESSION_ID2 = ?`

	listByPrincipalSQL = `SELECT S.SESSION_ID1, S.SESSION_ID2, S.CREATION_TIME, S.LAST_ACCESS_TIME, S.MAX_INACTIVE_INTERVAL, SA.ATTRIBUTE_NAME, SA.ATTRIBUTE_BYTES ` +
		`FROM %TABLE_NAME% S ` +
		`LEFT OUTER JOIN %TABLE_NAME%_ATTRIBUTES SA ON S.SESSION_ID1 = SA.SESSION_ID1 AND S.SESSION_ID2 = SA.SESSION_ID2 ` +
		`WHERE S.PRINCIPAL_NAME = ? ` +
		`ORDER BY S.SESSION_ID1, S.SESSION_ID2`

	deleteExpiredSQL = `DELETE FROM %TABLE_NAME% WHERE EXPIRY_TIME < ?`
)

var _ Store = (*SQLStore)(nil)

// DefaultTableName is the session table used when none is configured.
// The attributes table is always <table name>_ATTRIBUTES.
const DefaultTableName = "SESSIONS"

// SQLConfig configures a SQLStore. Zero values get defaults; a nil DB
// or unknown dialect is rejected eagerly.
type SQLConfig struct {
	// Dialect is the sql driver name the statements are bound for:
	// "postgres" or "sqlite3".
	Dialect string

	// TableName is the session table name prefix. Defaults to
	// DefaultTableName.
	TableName string

	// Codec serializes attribute values. Defaults to JSONCodec.
	Codec Codec

	// DefaultMaxInactiveInterval is applied to sessions from
	// CreateSession. Defaults to DefaultMaxInactiveInterval.
	DefaultMaxInactiveInterval time.Duration

	// PrincipalExtractor resolves the indexed principal name. Defaults
	// to DefaultPrincipalExtractor.
	PrincipalExtractor PrincipalExtractor

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// SQLStore persists sessions to a relational database, two tables per
// store: one row per session plus one row per attribute. Saves write
// only what changed. Concurrent saves of the same session id are
// last-writer-wins; there is no version column.
type SQLStore struct {
	db                 *db.DB
	codec              Codec
	extract            PrincipalExtractor
	defaultMaxInactive time.Duration
	now                func() time.Time

	createSessionQuery   string
	createAttributeQuery string
	getSessionQuery      string
	updateSessionQuery   string
	updateAttributeQuery string
	deleteAttributeQuery string
	deleteSessionQuery   string
	listByPrincipalQuery string
	deleteExpiredQuery   string
}

// NewSQLStore builds a SQLStore over the given pool. Configuration is
// validated here, not at first use.
func NewSQLStore(database *db.DB, cfg SQLConfig) (*SQLStore, error) {
	if database == nil {
		return nil, fmt.Errorf("session: db must not be nil")
	}
	switch cfg.Dialect {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("session: unsupported dialect %q", cfg.Dialect)
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("session: table name must not be blank")
	}
	if cfg.Codec == nil {
		cfg.Codec = JSONCodec{}
	}
	if cfg.DefaultMaxInactiveInterval == 0 {
		cfg.DefaultMaxInactiveInterval = DefaultMaxInactiveInterval
	}
	if cfg.PrincipalExtractor == nil {
		cfg.PrincipalExtractor = DefaultPrincipalExtractor
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	st := &SQLStore{
		db:                 database,
		codec:              cfg.Codec,
		extract:            cfg.PrincipalExtractor,
		defaultMaxInactive: cfg.DefaultMaxInactiveInterval,
		now:                cfg.Now,
	}
	st.prepareQueries(cfg.TableName, cfg.Dialect)
	return st, nil
}

func (st *SQLStore) prepareQueries(tableName, dialect string) {
	prepare := func(tmpl string) string {
		q := strings.ReplaceAll(tmpl, "%TABLE_NAME%", tableName)
		if dialect == "postgres" {
			q = rebindPostgres(q)
		}
		return q
	}
	st.createSessionQuery = prepare(createSessionSQL)
	st.createAttributeQuery = prepare(createAttributeSQL)
	st.getSessionQuery = prepare(getSessionSQL)
	st.updateSessionQuery = prepare(updateSessionSQL)
	st.updateAttributeQuery = prepare(updateAttributeSQL)
	st.deleteAttributeQuery = prepare(deleteAttributeSQL)
	st.deleteSessionQuery = prepare(deleteSessionSQL)
	st.listByPrincipalQuery = prepare(listByPrincipalSQL)
	st.deleteExpiredQuery = prepare(deleteExpiredSQL)
}

// rebindPostgres rewrites ? placeholders into the $1..$n form lib/pq
// expects. Statement text never carries literal question marks.
func rebindPostgres(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateSession returns a fresh unsaved session carrying the store's
// default max-inactive interval.
func (st *SQLStore) CreateSession(ctx context.Context) *Session {
	s := NewSession()
	s.maxInactiveInterval = st.defaultMaxInactive
	return s
}

// Save persists the session in one transaction: a full insert for new
// sessions, otherwise a metadata update gated on the changed flag plus
// one write per delta entry. Change flags are cleared only after the
// transaction commits.
func (st *SQLStore) Save(ctx context.Context, s *Session) error {
	var err error
	if s.IsNew() {
		err = st.db.RunInTx(ctx, func(tx *sql.Tx) error {
			return st.insertSession(ctx, tx, s)
		})
	} else {
		err = st.db.RunInTx(ctx, func(tx *sql.Tx) error {
			return st.updateSession(ctx, tx, s)
		})
	}
	if err != nil {
		return err
	}
	s.clearChangeFlags()
	return nil
}

func (st *SQLStore) insertSession(ctx context.Context, tx *sql.Tx, s *Session) error {
	if _, err := tx.ExecContext(ctx, st.createSessionQuery,
		s.id.Hi,
		s.id.Lo,
		s.creationTime.UnixMilli(),
		s.lastAccessedTime.UnixMilli(),
		int64(s.maxInactiveInterval/time.Second),
		s.ExpiryTime().UnixMilli(),
		st.principalColumn(s),
	); err != nil {
		return err
	}

	if len(s.attributes) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, st.createAttributeQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for name, value := range s.attributes {
		data, err := st.codec.Encode(value)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, s.id.Hi, s.id.Lo, name, data); err != nil {
			return err
		}
	}
	return nil
}

func (st *SQLStore) updateSession(ctx context.Context, tx *sql.Tx, s *Session) error {
	if s.isChanged() {
		// A pending id rotation makes the row reachable only by the id
		// the store last committed.
		storedID := s.consumeStoredID()
		if _, err := tx.ExecContext(ctx, st.updateSessionQuery,
			s.id.Hi,
			s.id.Lo,
			s.lastAccessedTime.UnixMilli(),
			int64(s.maxInactiveInterval/time.Second),
			s.ExpiryTime().UnixMilli(),
			st.principalColumn(s),
			storedID.Hi,
			storedID.Lo,
		); err != nil {
			return err
		}
	}

	for name, entry := range s.delta {
		if entry.removed {
			if _, err := tx.ExecContext(ctx, st.deleteAttributeQuery, s.id.Hi, s.id.Lo, name); err != nil {
				return err
			}
			continue
		}

		data, err := st.codec.Encode(entry.value)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, st.updateAttributeQuery, data, s.id.Hi, s.id.Lo, name)
		if err != nil {
			return err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return err
		}
		// The attribute did not exist yet; insert instead of probing
		// for existence up front.
		if updated == 0 {
			if _, err := tx.ExecContext(ctx, st.createAttributeQuery, s.id.Hi, s.id.Lo, name, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *SQLStore) principalColumn(s *Session) sql.NullString {
	name, ok := s.principalName(st.extract)
	return sql.NullString{String: name, Valid: ok}
}

// FindByID loads one session by its textual id. The id is parsed
// before any storage access. A session found past its expiry time is
// deleted and reported as absent.
func (st *SQLStore) FindByID(ctx context.Context, id string) (*Session, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	var found *Session
	err = st.db.RunInTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, st.getSessionQuery, parsed.Hi, parsed.Lo)
		if err != nil {
			return err
		}
		defer rows.Close()

		sessions, err := st.assemble(rows)
		if err != nil {
			return err
		}
		if len(sessions) > 0 {
			found = sessions[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, nil
	}
	if found.isExpiredAt(st.now()) {
		if err := st.deleteByID(ctx, parsed); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return found, nil
}

// DeleteByID removes one session row; attribute rows go with it via
// the cascading foreign key.
func (st *SQLStore) DeleteByID(ctx context.Context, id string) error {
	parsed, err := ParseID(id)
	if err != nil {
		return err
	}
	return st.deleteByID(ctx, parsed)
}

func (st *SQLStore) deleteByID(ctx context.Context, id ID) error {
	return st.db.RunInTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, st.deleteSessionQuery, id.Hi, id.Lo)
		return err
	})
}

// FindByIndexNameAndIndexValue returns all sessions whose resolved
// principal name equals indexValue, keyed by textual id. Index names
// other than PrincipalNameIndexName yield an empty map.
func (st *SQLStore) FindByIndexNameAndIndexValue(ctx context.Context, indexName, indexValue string) (map[string]*Session, error) {
	if indexName != PrincipalNameIndexName {
		return map[string]*Session{}, nil
	}

	var sessions []*Session
	err := st.db.RunInTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, st.listByPrincipalQuery, indexValue)
		if err != nil {
			return err
		}
		defer rows.Close()

		sessions, err = st.assemble(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID()] = s
	}
	return byID, nil
}

// CleanUpExpiredSessions bulk-deletes every session whose stored
// expiry time is strictly before now and reports how many went.
func (st *SQLStore) CleanUpExpiredSessions(ctx context.Context) (int64, error) {
	var deleted int64
	err := st.db.RunInTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, st.deleteExpiredQuery, st.now().UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// assemble rehydrates sessions from a flat joined result set, one row
// per attribute and a single null-attribute row for attribute-less
// sessions. Rows for one session arrive contiguously (primary key
// order), so a forward pass comparing against the last built entity is
// enough; it never assumes one row per session.
func (st *SQLStore) assemble(rows *sql.Rows) ([]*Session, error) {
	var sessions []*Session
	for rows.Next() {
		var (
			id1, id2             int64
			creation, lastAccess int64
			maxInactiveSecs      int64
			attrName             sql.NullString
			attrBytes            []byte
		)
		if err := rows.Scan(&id1, &id2, &creation, &lastAccess, &maxInactiveSecs, &attrName, &attrBytes); err != nil {
			return nil, err
		}

		id := ID{Hi: id1, Lo: id2}
		var current *Session
		if n := len(sessions); n > 0 && sessions[n-1].id == id {
			current = sessions[n-1]
		} else {
			current = newStoredSession(
				id,
				time.UnixMilli(creation),
				time.UnixMilli(lastAccess),
				time.Duration(maxInactiveSecs)*time.Second,
			)
			sessions = append(sessions, current)
		}

		if attrName.Valid {
			value, err := st.codec.Decode(attrBytes)
			if err != nil {
				return nil, err
			}
			// Straight into the map: rehydration must leave the delta
			// empty and the change flags clear.
			current.attributes[attrName.String] = value
		}
	}
	return sessions, rows.Err()
}
