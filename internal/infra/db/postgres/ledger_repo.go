package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/repository"
)

var _ repository.ProcessingLedger = (*LedgerRepo)(nil)

// LedgerRepo keeps download rows in processed_videos and transcript rows in
// processed_transcripts. Each call is a single statement on a pooled connection.
type LedgerRepo struct {
	db executor
}

func NewLedgerRepo(db executor) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) Upsert(ctx context.Context, key model.LedgerKey, messageID int, status model.LedgerStatus) error {
	if key.VideoID == "" {
		return domain.ErrInvalidArgument
	}
	if key.IsTranscript() {
		const q = `
INSERT INTO processed_transcripts (chat_id, video_id, language, message_id, status, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (chat_id, video_id, language) DO UPDATE SET
  message_id = EXCLUDED.message_id, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at;`
		return execSQL(ctx, r.db, q, key.ChatID, key.VideoID, key.Language, messageID, string(status))
	}
	const q = `
INSERT INTO processed_videos (chat_id, video_id, message_id, status, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (chat_id, video_id) DO UPDATE SET
  message_id = EXCLUDED.message_id, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at;`
	return execSQL(ctx, r.db, q, key.ChatID, key.VideoID, messageID, string(status))
}

func (r *LedgerRepo) Get(ctx context.Context, key model.LedgerKey) (*model.LedgerEntry, error) {
	var row pgx.Row
	if key.IsTranscript() {
		const q = `
SELECT message_id, status, updated_at FROM processed_transcripts
 WHERE chat_id=$1 AND video_id=$2 AND language=$3;`
		row = pickRow(ctx, r.db, q, key.ChatID, key.VideoID, key.Language)
	} else {
		const q = `
SELECT message_id, status, updated_at FROM processed_videos
 WHERE chat_id=$1 AND video_id=$2;`
		row = pickRow(ctx, r.db, q, key.ChatID, key.VideoID)
	}

	var (
		msgID   int64
		status  string
		updated time.Time
	)
	if err := row.Scan(&msgID, &status, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapPgError(err)
	}
	return &model.LedgerEntry{
		Key:       key,
		MessageID: int(msgID),
		Status:    model.LedgerStatus(status),
		UpdatedAt: updated,
	}, nil
}
