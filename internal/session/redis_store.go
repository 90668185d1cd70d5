package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore is the non-relational Store implementation: one JSON
// document per session with a TTL matching the expiry time, plus a SET
// per principal for the index. Redis reaps expired documents itself,
// so the bulk cleanup only prunes stale index membership.
type RedisStore struct {
	client             *redis.Client
	prefix             string
	extract            PrincipalExtractor
	defaultMaxInactive time.Duration
	now                func() time.Time
}

// sessionDoc is the wire form of one session in Redis.
type sessionDoc struct {
	CreationTime     int64          `json:"creation_time"`
	LastAccessedTime int64          `json:"last_accessed_time"`
	MaxInactiveSecs  int64          `json:"max_inactive_secs"`
	Principal        string         `json:"principal,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, defaultMaxInactive time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("session: redis client must not be nil")
	}
	if defaultMaxInactive == 0 {
		defaultMaxInactive = DefaultMaxInactiveInterval
	}
	return &RedisStore{
		client:             client,
		prefix:             "session:",
		extract:            DefaultPrincipalExtractor,
		defaultMaxInactive: defaultMaxInactive,
		now:                time.Now,
	}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) indexKey(principal string) string {
	return r.prefix + "index:" + principal
}

func (r *RedisStore) CreateSession(ctx context.Context) *Session {
	s := NewSession()
	s.maxInactiveInterval = r.defaultMaxInactive
	return s
}

// Save writes the whole session document. Delta granularity does not
// apply here; the document is small and single-key writes are atomic.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ttl := s.ExpiryTime().Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session: cannot save already expired session %s", s.ID())
	}

	principal, _ := s.principalName(r.extract)
	doc := sessionDoc{
		CreationTime:     s.creationTime.UnixMilli(),
		LastAccessedTime: s.lastAccessedTime.UnixMilli(),
		MaxInactiveSecs:  int64(s.maxInactiveInterval / time.Second),
		Principal:        principal,
		Attributes:       s.attributes,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	storedID := s.consumeStoredID()
	pipe := r.client.TxPipeline()
	if storedID != s.id {
		// Pending rotation: the document moves to the new key.
		pipe.Del(ctx, r.key(storedID.String()))
		if principal != "" {
			pipe.SRem(ctx, r.indexKey(principal), storedID.String())
		}
	}
	pipe.Set(ctx, r.key(s.ID()), data, ttl)
	if principal != "" {
		pipe.SAdd(ctx, r.indexKey(principal), s.ID())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.clearChangeFlags()
	return nil
}

func (r *RedisStore) FindByID(ctx context.Context, id string) (*Session, error) {
	if _, err := ParseID(id); err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s, err := r.rehydrate(id, val)
	if err != nil {
		return nil, err
	}
	if s.isExpiredAt(r.now()) {
		if err := r.DeleteByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

func (r *RedisStore) rehydrate(id string, data []byte) (*Session, error) {
	var doc sessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	parsed, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	s := newStoredSession(
		parsed,
		time.UnixMilli(doc.CreationTime),
		time.UnixMilli(doc.LastAccessedTime),
		time.Duration(doc.MaxInactiveSecs)*time.Second,
	)
	for name, value := range doc.Attributes {
		s.attributes[name] = value
	}
	return s, nil
}

func (r *RedisStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := ParseID(id); err != nil {
		return err
	}

	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := r.client.TxPipeline()
	if err == nil {
		var doc sessionDoc
		if jsonErr := json.Unmarshal(val, &doc); jsonErr == nil && doc.Principal != "" {
			pipe.SRem(ctx, r.indexKey(doc.Principal), id)
		}
	}
	pipe.Del(ctx, r.key(id))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FindByIndexNameAndIndexValue(ctx context.Context, indexName, indexValue string) (map[string]*Session, error) {
	if indexName != PrincipalNameIndexName {
		return map[string]*Session{}, nil
	}

	ids, err := r.client.SMembers(ctx, r.indexKey(indexValue)).Result()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Session, len(ids))
	for _, id := range ids {
		val, err := r.client.Get(ctx, r.key(id)).Bytes()
		if err == redis.Nil {
			// Document already reaped by its TTL; drop the index entry.
			_ = r.client.SRem(ctx, r.indexKey(indexValue), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		s, err := r.rehydrate(id, val)
		if err != nil {
			return nil, err
		}
		if s.isExpiredAt(r.now()) {
			continue
		}
		byID[id] = s
	}
	return byID, nil
}

// CleanUpExpiredSessions prunes index entries whose documents were
// reaped by their TTL. Redis removes the session documents themselves.
func (r *RedisStore) CleanUpExpiredSessions(ctx context.Context) (int64, error) {
	var pruned int64
	iter := r.client.Scan(ctx, 0, r.prefix+"index:*", 0).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := r.client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return pruned, err
		}
		for _, id := range ids {
			exists, err := r.client.Exists(ctx, r.key(id)).Result()
			if err != nil {
				return pruned, err
			}
			if exists == 0 {
				if err := r.client.SRem(ctx, indexKey, id).Err(); err != nil {
					return pruned, err
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, err
	}
	return pruned, nil
}
