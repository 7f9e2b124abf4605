// Package delivery uploads files through the transport with bounded retries.
package delivery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/infra/metrics"
)

type Options struct {
	Attempts        int
	RateLimitMargin time.Duration
	TimeoutBackoff  time.Duration
	ErrorBackoff    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Attempts:        5,
		RateLimitMargin: time.Second,
		TimeoutBackoff:  10 * time.Second,
		ErrorBackoff:    5 * time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sender retries uploads on flood control, timeouts and transient errors.
type Sender struct {
	transport adapter.Transport
	opts      Options
	sleep     SleepFunc
	logger    *zerolog.Logger
}

func NewSender(t adapter.Transport, opts Options, logger *zerolog.Logger) *Sender {
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	return &Sender{transport: t, opts: opts, sleep: sleepCtx, logger: logging.Component(logger, "sender")}
}

// WithSleep replaces the backoff wait. Used by tests.
func (s *Sender) WithSleep(fn SleepFunc) *Sender {
	s.sleep = fn
	return s
}

// Send uploads the file at path and returns the remote message id. Every
// attempt reopens the file so no upload resumes from a partial offset.
func (s *Sender) Send(ctx context.Context, chatID int64, kind adapter.MediaKind, path, caption string) (int, bool) {
	l := logging.With(ctx, s.logger).With().Str("file", filepath.Base(path)).Str("kind", string(kind)).Logger()

	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		msgID, err := s.attempt(ctx, chatID, kind, path, caption)
		if err == nil {
			metrics.IncSendAttempt(string(kind), "ok")
			l.Info().Int("attempt", attempt).Int("message_id", msgID).Msg("file sent")
			return msgID, true
		}
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, context.Canceled) {
			l.Error().Err(err).Msg("send aborted")
			return 0, false
		}

		var wait time.Duration
		var rl *adapter.RetryAfterError
		switch {
		case errors.As(err, &rl):
			wait = rl.After + s.opts.RateLimitMargin
			metrics.IncSendAttempt(string(kind), "rate_limited")
		case errors.Is(err, adapter.ErrTransportTimeout):
			wait = s.opts.TimeoutBackoff
			metrics.IncSendAttempt(string(kind), "timeout")
		default:
			wait = s.opts.ErrorBackoff
			metrics.IncSendAttempt(string(kind), "error")
		}
		l.Warn().Err(err).Int("attempt", attempt).Int("attempts", s.opts.Attempts).Dur("backoff", wait).Msg("send failed")

		if attempt == s.opts.Attempts {
			break
		}
		if err := s.sleep(ctx, wait); err != nil {
			l.Error().Err(err).Msg("send aborted during backoff")
			return 0, false
		}
	}
	l.Error().Int("attempts", s.opts.Attempts).Msg("send retry budget exhausted")
	return 0, false
}

func (s *Sender) attempt(ctx context.Context, chatID int64, kind adapter.MediaKind, path, caption string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return s.transport.SendMedia(ctx, chatID, kind, adapter.Upload{
		Name:   filepath.Base(path),
		Reader: f,
		Size:   st.Size(),
	}, caption)
}
