package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-yt-relay/internal/domain/ports/repository"
	"telegram-yt-relay/internal/infra/metrics"
	red "telegram-yt-relay/internal/infra/redis"
)

var _ repository.LanguagePreferenceRepository = (*languageRepoCacheDecorator)(nil)

type languageRepoCacheDecorator struct {
	inner repository.LanguagePreferenceRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewLanguageRepoCacheDecorator(inner repository.LanguagePreferenceRepository, cache red.RedisClient, ttl time.Duration) repository.LanguagePreferenceRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &languageRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func languageKey(userID int64) string { return fmt.Sprintf("lang:user:%d", userID) }

func (d *languageRepoCacheDecorator) Get(ctx context.Context, userID int64) (string, error) {
	key := languageKey(userID)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil && val != "":
		metrics.IncCacheRequest("language", "hit")
		return val, nil
	case err != nil && !errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("language", "error")
	default:
		metrics.IncCacheRequest("language", "miss")
	}

	code, err := d.inner.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	_ = d.cache.Set(ctx, key, code, d.ttl)
	return code, nil
}

// Set writes through and drops the cached value.
func (d *languageRepoCacheDecorator) Set(ctx context.Context, userID int64, code string) error {
	if err := d.inner.Set(ctx, userID, code); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, languageKey(userID))
	return nil
}
