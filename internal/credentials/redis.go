package credentials

import (
	"context"
	"fmt"

	relay_errors "hiive-relay/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// tokenKey is the single key holding the Hiive bearer token.
const tokenKey = "hiive:auth_token"

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client for the credential store.
func NewRedisClient(cfg RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore persists the credential in Redis so overlapping request and
// cron processes observe the same token.
type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, tokenKey).Result()
	if err == goredis.Nil {
		return "", relay_errors.ErrNoCredential
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	// No TTL: the token stays valid until the remote host rejects it.
	return s.client.Set(ctx, tokenKey, token, 0).Err()
}

func (s *RedisStore) DeleteToken(ctx context.Context) error {
	return s.client.Del(ctx, tokenKey).Err()
}
