package utils

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "token_blacklist:"

// TokenBlacklist records revoked token ids until they would have expired.
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RedisTokenBlacklist struct {
	rdb *goredis.Client
}

func NewRedisTokenBlacklist(rdb *goredis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{rdb: rdb}
}

func (b *RedisTokenBlacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistKeyPrefix+tokenID, "1", ttl).Err()
}

func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := b.rdb.Get(ctx, blacklistKeyPrefix+tokenID).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// NopTokenBlacklist is used when redis is not configured: logout becomes
// client-side only.
type NopTokenBlacklist struct{}

func (NopTokenBlacklist) Revoke(context.Context, string, time.Duration) error { return nil }

func (NopTokenBlacklist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
