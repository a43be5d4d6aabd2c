package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "compostbot:user:"

// RedisStore keeps per-user key-value pairs in Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value stored for a user's key
func (s *RedisStore) Get(ctx context.Context, userID int64, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, userKey(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value under a user's key without expiry
func (s *RedisStore) Set(ctx context.Context, userID int64, key, value string) error {
	return s.client.Set(ctx, userKey(userID, key), value, 0).Err()
}

// ListUsers scans for users that have a value for key
func (s *RedisStore) ListUsers(ctx context.Context, key string) ([]int64, error) {
	var users []int64
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*:"+key, 100).Iterator()
	for iter.Next(ctx) {
		id, ok := parseUserKey(iter.Val(), key)
		if ok {
			users = append(users, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func userKey(userID int64, key string) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10) + ":" + key
}

func parseUserKey(full, key string) (int64, bool) {
	rest, ok := strings.CutPrefix(full, redisKeyPrefix)
	if !ok {
		return 0, false
	}
	idPart, ok := strings.CutSuffix(rest, ":"+key)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
