package model

import (
	"fmt"
	"time"
)

type LedgerStatus string

const (
	LedgerStatusProcessing LedgerStatus = "processing"
	LedgerStatusSuccess    LedgerStatus = "success"
	LedgerStatusFailed     LedgerStatus = "failed"
)

// LedgerKey scopes a ledger row. Language is empty for downloads.
type LedgerKey struct {
	ChatID   int64
	VideoID  string
	Language string
}

func DownloadKey(chatID int64, videoID string) LedgerKey {
	return LedgerKey{ChatID: chatID, VideoID: videoID}
}

func TranscriptKey(chatID int64, videoID, lang string) LedgerKey {
	return LedgerKey{ChatID: chatID, VideoID: videoID, Language: lang}
}

func (k LedgerKey) IsTranscript() bool { return k.Language != "" }

func (k LedgerKey) String() string {
	if k.IsTranscript() {
		return fmt.Sprintf("%d:%s:%s", k.ChatID, k.VideoID, k.Language)
	}
	return fmt.Sprintf("%d:%s", k.ChatID, k.VideoID)
}

type LedgerEntry struct {
	Key       LedgerKey
	MessageID int
	Status    LedgerStatus
	UpdatedAt time.Time
}
