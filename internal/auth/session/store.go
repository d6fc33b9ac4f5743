package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "session:"
	redisUserKeyPrefix = "session:user:"
)

// RedisStore keeps sessions in Redis with a native TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	userKey := redisUserKeyPrefix + rec.User.ID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKeyPrefix+rec.ID, data, ttl)
		pipe.SAdd(ctx, userKey, rec.ID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}

// DeleteUser drops the user's sessions. The per-user index may list ids that
// already expired; deleting those is a no-op.
func (s *RedisStore) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	userKey := redisUserKeyPrefix + userID.String()
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, redisKeyPrefix+id)
	}
	keys = append(keys, userKey)
	return s.client.Del(ctx, keys...).Err()
}

// MemoryStore is a process-local Store used when Redis is not configured.
// Sessions do not survive a restart and are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ExpiresAt = s.now().Add(ttl)
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.records, id)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.User.ID == userID {
			delete(s.records, id)
		}
	}
	return nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
