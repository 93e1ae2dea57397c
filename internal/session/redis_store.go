package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"geocompliance/api/internal/review"
)

// RedisStore keeps selection state in Redis so it survives API restarts and
// is shared across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis at redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "selection:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(viewerID, documentID string) string {
	return s.prefix + viewerID + ":" + documentID
}

func (s *RedisStore) Get(ctx context.Context, viewerID, documentID string) (review.Selection, error) {
	jsonData, err := s.client.Get(ctx, s.key(viewerID, documentID)).Result()
	if err == redis.Nil {
		return review.Selection{}, nil
	}
	if err != nil {
		return review.Selection{}, fmt.Errorf("lookup selection: %w", err)
	}

	var sel review.Selection
	if err := json.Unmarshal([]byte(jsonData), &sel); err != nil {
		return review.Selection{}, fmt.Errorf("unmarshal selection: %w", err)
	}
	return sel, nil
}

func (s *RedisStore) Save(ctx context.Context, viewerID, documentID string, sel review.Selection) error {
	jsonData, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}

	if err := s.client.Set(ctx, s.key(viewerID, documentID), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, viewerID, documentID string) error {
	if err := s.client.Del(ctx, s.key(viewerID, documentID)).Err(); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
