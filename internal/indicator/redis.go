package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	redisKeyPrefix = "tw:indicator:"
	redisIndexKey  = "tw:indicators"
)

// RedisStore is the durable Store implementation, for deployments that need
// indicators to survive restarts. The mutex keeps the read-merge-write of
// Upsert single-writer; reads go straight to redis.
type RedisStore struct {
	client *redis.Client
	mu     sync.Mutex
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *RedisStore) Upsert(ctx context.Context, ind Indicator) (Outcome, error) {
	key := ind.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.fetch(ctx, key)
	if err != nil {
		return OutcomeUnchanged, err
	}

	outcome := OutcomeUnchanged
	switch {
	case existing == nil:
		if ind.ID == "" {
			ind.ID = uuid.NewString()
		}
		if ind.LastSeen.Before(ind.FirstSeen) {
			ind.LastSeen = ind.FirstSeen
		}
		existing = &ind
		outcome = OutcomeInserted
	case merge(existing, ind):
		outcome = OutcomeUpdated
	default:
		return OutcomeUnchanged, nil
	}

	data, err := json.Marshal(existing)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("marshal indicator: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, data, 0)
	pipe.SAdd(ctx, redisIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return OutcomeUnchanged, fmt.Errorf("store indicator: %w", err)
	}
	return outcome, nil
}

func (s *RedisStore) Get(ctx context.Context, t Type, value string) (*Indicator, error) {
	return s.fetch(ctx, Key(t, value))
}

func (s *RedisStore) fetch(ctx context.Context, key string) (*Indicator, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch indicator: %w", err)
	}
	var ind Indicator
	if err := json.Unmarshal(data, &ind); err != nil {
		return nil, fmt.Errorf("decode indicator: %w", err)
	}
	return &ind, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, redisIndexKey).Result()
	return int(n), err
}

func (s *RedisStore) All(ctx context.Context) ([]Indicator, error) {
	keys, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Indicator, 0, len(keys))
	for _, key := range keys {
		ind, err := s.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if ind != nil {
			out = append(out, *ind)
		}
	}
	return out, nil
}
