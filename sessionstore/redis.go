package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists encounter records in Redis as JSON values under
// "{prefix}:{encounter_id}".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Prefix string        // key prefix, default "encounter"
	TTL    time.Duration // 0 = no expiry
}

// DefaultRedisStoreConfig returns the default key prefix and no expiry.
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{Prefix: "encounter"}
}

// NewRedisStore creates a Store backed by Redis. Works with a Client,
// ClusterClient or Ring.
func NewRedisStore(client redis.UniversalClient, config ...RedisStoreConfig) *RedisStore {
	cfg := DefaultRedisStoreConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "encounter"
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) key(encounterID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, encounterID)
}

func (s *RedisStore) Create(ctx context.Context, rec *EncounterRecord) error {
	return s.put(ctx, rec)
}

func (s *RedisStore) Update(ctx context.Context, rec *EncounterRecord) error {
	return s.put(ctx, rec)
}

func (s *RedisStore) put(ctx context.Context, rec *EncounterRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal encounter %s: %w", rec.EncounterID, err)
	}
	return s.client.Set(ctx, s.key(rec.EncounterID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, encounterID string) (*EncounterRecord, error) {
	data, err := s.client.Get(ctx, s.key(encounterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec EncounterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal encounter %s: %w", encounterID, err)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, encounterID string) error {
	return s.client.Del(ctx, s.key(encounterID)).Err()
}
