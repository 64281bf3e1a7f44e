package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"task-tracker/backend/internal/session/domain"
)

// RedisStore keeps session records as JSON strings under the bare username key.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a Store backed by rdb. A non-positive ttl uses domain.DefaultTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and returns a client. The caller owns Close.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func (s *RedisStore) Put(ctx context.Context, username, accessToken, refreshToken string) error {
	if username == "" {
		return errors.New("session: username is required")
	}
	payload, err := json.Marshal(domain.Session{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, username, payload, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, username string) (*domain.Session, error) {
	if username == "" {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, username).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: decode record for %q: %w", username, err)
	}
	sess.Username = username
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, username string) error {
	if username == "" {
		return nil
	}
	return s.rdb.Del(ctx, username).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
