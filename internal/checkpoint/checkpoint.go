// Package checkpoint provides Redis-backed persistence for the alert cursor
// watermark, so a restarted daemon resumes where it left off instead of
// re-escalating alerts it has already seen.
package checkpoint

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	userID string
}

func NewRedisStore(redisAddr, userID string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		userID: userID,
	}, nil
}

func (s *RedisStore) cursorKey() string {
	return "vigil:{" + s.userID + "}:cursor"
}

func (s *RedisStore) unreadKey() string {
	return "vigil:{" + s.userID + "}:unread"
}

// LoadCursor returns the persisted watermark, or zero when none exists.
func (s *RedisStore) LoadCursor(ctx context.Context) (int64, error) {
	val, err := s.client.Get(ctx, s.cursorKey()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (s *RedisStore) SaveCursor(ctx context.Context, maxSeenID int64) error {
	return s.client.Set(ctx, s.cursorKey(), strconv.FormatInt(maxSeenID, 10), 0).Err()
}

// LoadUnread returns the last persisted badge count, or zero when none exists.
func (s *RedisStore) LoadUnread(ctx context.Context) (int, error) {
	val, err := s.client.Get(ctx, s.unreadKey()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

func (s *RedisStore) SaveUnread(ctx context.Context, count int) error {
	return s.client.Set(ctx, s.unreadKey(), strconv.Itoa(count), 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
