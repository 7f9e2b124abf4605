//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
)

func TestLedgerRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	repo := NewLedgerRepo(testPool)
	ctx := context.Background()

	t.Run("should keep exactly one row with the last status", func(t *testing.T) {
		cleanup(t)
		key := model.DownloadKey(42, "dQw4w9WgXcQ")
		if err := repo.Upsert(ctx, key, 11, model.LedgerStatusProcessing); err != nil {
			t.Fatalf("first upsert: %v", err)
		}
		if err := repo.Upsert(ctx, key, 12, model.LedgerStatusSuccess); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		e, err := repo.Get(ctx, key)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if e.Status != model.LedgerStatusSuccess || e.MessageID != 12 {
			t.Errorf("unexpected entry %+v", e)
		}

		var n int
		if err := testPool.QueryRow(ctx, `SELECT count(*) FROM processed_videos`).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expected 1 row, got %d", n)
		}
	})

	t.Run("should scope transcripts by language", func(t *testing.T) {
		cleanup(t)
		es := model.TranscriptKey(42, "dQw4w9WgXcQ", "es")
		en := model.TranscriptKey(42, "dQw4w9WgXcQ", "en")
		if err := repo.Upsert(ctx, es, 900, model.LedgerStatusFailed); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.Get(ctx, en); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found for other language, got %v", err)
		}
		if _, err := repo.Get(ctx, model.DownloadKey(42, "dQw4w9WgXcQ")); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("transcript rows must not leak into downloads, got %v", err)
		}
		e, err := repo.Get(ctx, es)
		if err != nil || e.Status != model.LedgerStatusFailed || e.Key != es {
			t.Errorf("got %+v, %v", e, err)
		}
	})
}
