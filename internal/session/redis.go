package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration, keyPrefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "jobboard:session"
	}
	return &RedisStore{client: client, ttl: ttl, keyPrefix: keyPrefix}, nil
}

func (s *RedisStore) Create(ctx context.Context, subject string) (Session, error) {
	sess, err := newSession(subject, s.ttl, time.Now())
	if err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.Token), subject, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Valid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	err := s.client.Get(ctx, s.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) key(token string) string {
	return s.keyPrefix + ":" + token
}
