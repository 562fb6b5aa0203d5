package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "esc:funnel:session:"
	defaultDraftTTL  = 24 * time.Hour
)

// RedisDraftStore keeps funnel sessions in Redis as JSON with a sliding TTL.
type RedisDraftStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDraftStore creates a store. A non-positive ttl uses 24h.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if client == nil {
		panic("leads: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	return &RedisDraftStore{redis: client, prefix: defaultKeyPrefix, ttl: ttl}
}

func (s *RedisDraftStore) key(id string) string {
	return s.prefix + id
}

// Save writes rec and refreshes its TTL.
func (s *RedisDraftStore) Save(ctx context.Context, rec *SessionRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrMissingSessionID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("leads: marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("leads: save session: %w", err)
	}
	return nil
}

// Load reads the record stored under id.
func (s *RedisDraftStore) Load(ctx context.Context, id string) (*SessionRecord, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: load session: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("leads: decode session: %w", err)
	}
	return &rec, nil
}

// Delete removes the record.
func (s *RedisDraftStore) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("leads: delete session: %w", err)
	}
	if n == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// PurgeAfter shortens the record's TTL so Redis expires it after delay.
func (s *RedisDraftStore) PurgeAfter(ctx context.Context, id string, delay time.Duration) error {
	if delay <= 0 {
		return s.Delete(ctx, id)
	}
	ok, err := s.redis.PExpire(ctx, s.key(id), delay).Result()
	if err != nil {
		return fmt.Errorf("leads: schedule purge: %w", err)
	}
	if !ok {
		return ErrDraftNotFound
	}
	return nil
}
