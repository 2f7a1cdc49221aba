package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"agent-radar/internal/domain"
)

const tokenKeyPrefix = "agent-radar:token:"

// RedisCache хранит токены доступа в Redis, чтобы они переживали рестарт процесса.
type RedisCache struct {
	client *redis.Client
}

var _ domain.TokenCache = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetToken возвращает токен, если он ещё не истёк.
func (c *RedisCache) GetToken(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, tokenKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetToken сохраняет токен с ограниченным временем жизни.
func (c *RedisCache) SetToken(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, tokenKeyPrefix+key, token, ttl).Err()
}
