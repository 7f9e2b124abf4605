package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// StatusMessage identifies an editable message the user already sees.
type StatusMessage struct {
	ChatID    int64
	MessageID int
}

// Upload is one file body handed to the transport. Reader is consumed once.
type Upload struct {
	Name   string
	Reader io.Reader
	Size   int64
}

type MediaKind string

const (
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Transport is the outbound side of the messenger.
type Transport interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string) (StatusMessage, error)
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	EditText(ctx context.Context, msg StatusMessage, text string) error
	SendMedia(ctx context.Context, chatID int64, kind MediaKind, file Upload, caption string) (int, error)
}

// ErrTransportTimeout marks a request that timed out in flight.
var ErrTransportTimeout = errors.New("transport request timed out")

// RetryAfterError is a flood-control rejection carrying the cooldown.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.After, e.Err)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }
