package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter is used when no provider key is configured. It echoes the
// text after the instruction block, so transcripts come back uncleaned.
type NoopAIAdapter struct {
	log *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "noop-ai").Logger()
	return &NoopAIAdapter{log: &l}
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := a.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	if len(messages) == 0 {
		return "", adapter.Usage{}, nil
	}
	content := messages[len(messages)-1].Content
	if i := strings.LastIndex(content, "\n\n"); i >= 0 {
		content = content[i+2:]
	}
	a.log.Debug().Str("model", model).Int("chars", len(content)).Msg("noop generation")
	return content, adapter.Usage{}, nil
}
