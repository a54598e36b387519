package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix = "altered:match:"
	redisIndexKey  = "altered:matches"
)

// RedisStore persists snapshots as one redis string per match plus an index
// set of known match ids.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(addr, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Save writes the snapshot and registers the id in the index set.
func (s *RedisStore) Save(ctx context.Context, record *MatchRecord) error {
	record.UpdatedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+record.ID, data, 0)
	pipe.SAdd(ctx, redisIndexKey, record.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", record.ID, err)
	}

	if s.logger != nil {
		s.logger.Debug("saved match snapshot",
			zap.String("match_id", record.ID),
			zap.String("phase", record.Phase),
		)
	}
	return nil
}

// Load reads the snapshot for a match id.
func (s *RedisStore) Load(ctx context.Context, matchID string) (*MatchRecord, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+matchID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", matchID, err)
	}

	var record MatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", matchID, err)
	}
	return &record, nil
}

// List returns the ids in the index set.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return ids, nil
}
