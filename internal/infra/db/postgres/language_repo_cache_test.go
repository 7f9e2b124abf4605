//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-yt-relay/internal/domain"
)

func TestLanguageRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()

	t.Run("Get should fetch from DB and warm the cache on miss", func(t *testing.T) {
		var setKey string
		var setVal interface{}
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", redis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, exp time.Duration) error {
				setKey, setVal = key, value
				return nil
			},
		}
		innerCalled := false
		inner := &mockInnerLanguageRepo{
			GetFunc: func(ctx context.Context, userID int64) (string, error) {
				innerCalled = true
				return "es", nil
			},
		}

		code, err := NewLanguageRepoCacheDecorator(inner, mockRedis, time.Minute).Get(ctx, 42)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !innerCalled {
			t.Error("inner repository should be called on a cache miss")
		}
		if code != "es" || setKey != "lang:user:42" || setVal != "es" {
			t.Errorf("got code=%q key=%q val=%v", code, setKey, setVal)
		}
	})

	t.Run("Get should serve a hit without touching the DB", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "fa", nil },
		}
		inner := &mockInnerLanguageRepo{
			GetFunc: func(ctx context.Context, userID int64) (string, error) {
				t.Fatal("inner repository must not be called on a hit")
				return "", nil
			},
		}
		code, err := NewLanguageRepoCacheDecorator(inner, mockRedis, 0).Get(ctx, 1)
		if err != nil || code != "fa" {
			t.Fatalf("got %q, %v", code, err)
		}
	})

	t.Run("Get should pass through not found without caching", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", errors.New("conn refused") },
			SetFunc: func(ctx context.Context, key string, value interface{}, exp time.Duration) error {
				t.Fatal("nothing should be cached")
				return nil
			},
		}
		inner := &mockInnerLanguageRepo{
			GetFunc: func(ctx context.Context, userID int64) (string, error) { return "", domain.ErrNotFound },
		}
		if _, err := NewLanguageRepoCacheDecorator(inner, mockRedis, 0).Get(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("Set should write through and invalidate", func(t *testing.T) {
		var deleted []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deleted = append(deleted, keys...)
				return nil
			},
		}
		var saved string
		inner := &mockInnerLanguageRepo{
			SetFunc: func(ctx context.Context, userID int64, code string) error {
				saved = code
				return nil
			},
		}
		if err := NewLanguageRepoCacheDecorator(inner, mockRedis, 0).Set(ctx, 9, "de"); err != nil {
			t.Fatal(err)
		}
		if saved != "de" || len(deleted) != 1 || deleted[0] != "lang:user:9" {
			t.Fatalf("saved=%q deleted=%v", saved, deleted)
		}
	})
}
