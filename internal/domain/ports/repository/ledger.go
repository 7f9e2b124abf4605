package repository

import (
	"context"

	"telegram-yt-relay/internal/domain/model"
)

// ProcessingLedger stores the last known status per scope key.
// Upsert replaces status and message id unconditionally.
type ProcessingLedger interface {
	Upsert(ctx context.Context, key model.LedgerKey, messageID int, status model.LedgerStatus) error
	// Get returns domain.ErrNotFound when no row exists.
	Get(ctx context.Context, key model.LedgerKey) (*model.LedgerEntry, error)
}
