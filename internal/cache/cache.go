// cache — необязательный Redis-кэш отозванных refresh-токенов.
// Ключ — хэш токена, значение — причина отзыва. TTL равен остатку жизни токена,
// поэтому кэш не растёт бесконечно. Источник истины остаётся в хранилище:
// кэш лишь позволяет отклонить повторное предъявление без обращения к БД.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Причины отзыва.
const (
	ReasonRotated = "rotated"
	ReasonLogout  = "logout"
)

// RefreshCache — минимальный контракт кэша отозванных refresh-токенов.
type RefreshCache interface {
	// Revoked сообщает, помечен ли хэш как отозванный, и причину.
	Revoked(ctx context.Context, hash string) (reason string, ok bool, err error)
	// MarkRevoked помечает хэш отозванным на ttl.
	MarkRevoked(ctx context.Context, hash, reason string, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "tm:rt:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (RefreshCache, error) {
	if prefix == "" {
		prefix = "tm:rt:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

func (c *redisCache) Revoked(ctx context.Context, hash string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.key(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, err
	}

	return v, true, nil
}

// MarkRevoked с ttl <= 0 ничего не делает: просроченный токен и так недействителен.
func (c *redisCache) MarkRevoked(ctx context.Context, hash, reason string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	return c.rdb.Set(ctx, c.key(hash), reason, ttl).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
