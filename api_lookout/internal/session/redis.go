package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "lookout:session:"
	maxMergeRetries = 5
)

// RedisStore keeps each session as one JSON string with a sliding TTL.
// Merges are optimistic WATCH/MULTI transactions.
type RedisStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client goredis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionID string) string { return keyPrefix + sessionID }

func (s *RedisStore) MergeSessionData(ctx context.Context, sessionID string, patch map[string]any) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	key := redisKey(sessionID)

	merge := func(tx *goredis.Tx) error {
		data, err := s.load(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if data == nil {
			data = map[string]any{}
		}
		for k, v := range patch {
			data[k] = v
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxMergeRetries; i++ {
		err := s.client.Watch(ctx, merge, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return fmt.Errorf("merge session %s: %w", sessionID, err)
		}
	}
	return fmt.Errorf("merge session %s: %w", sessionID, goredis.TxFailedErr)
}

func (s *RedisStore) GetSessionData(ctx context.Context, sessionID string) (map[string]any, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	return s.load(ctx, s.client, redisKey(sessionID))
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, key string) (map[string]any, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return data, nil
}
