package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "linkbird:"

// RedisSnapshotStore keeps each slot under one Redis key without expiry.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSnapshotStore(redisURL string) (*RedisSnapshotStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisSnapshotStoreWithClient(client), nil
}

func NewRedisSnapshotStoreWithClient(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, prefix: defaultRedisPrefix}
}

func (s *RedisSnapshotStore) key(slot string) string {
	return s.prefix + slot
}

func (s *RedisSnapshotStore) Load(ctx context.Context, slot string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.key(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", slot, err)
	}
	return payload, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, slot string, payload []byte) error {
	if err := s.client.Set(ctx, s.key(slot), payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", slot, err)
	}
	return nil
}

func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
