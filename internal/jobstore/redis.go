package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

const resultKeyPrefix = "job:result:"

// RedisStore keeps job results in Redis, relying on key expiry for eviction.
// Useful when several instances serve the same result set.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisStore connects to the Redis instance at url (redis:// form) and
// verifies the connection with a ping.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, logger logging.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With(logging.Field{Key: "component", Value: "redis-store"}),
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, result *model.JobResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}
	if err := s.rdb.Set(ctx, resultKeyPrefix+result.JobID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job result: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*model.JobResult, error) {
	payload, err := s.rdb.Get(ctx, resultKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job result: %w", err)
	}

	var result model.JobResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job result %s: %w", jobID, err)
	}
	return &result, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
