package ai

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain/ports/adapter"
)

// Encoder is the part of *tiktoken.Tiktoken the budget needs.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

var _ adapter.AIServiceAdapter = (*budgetAI)(nil)

// budgetAI trims the last message so a long transcript never exceeds the
// provider input window. Token counts are an estimate for non OpenAI models.
type budgetAI struct {
	inner    adapter.AIServiceAdapter
	enc      Encoder
	maxInput int
	log      *zerolog.Logger
}

// NewBudgetAI wraps inner with a tiktoken based input budget. When no
// encoding can be loaded, inner is returned unchanged.
func NewBudgetAI(inner adapter.AIServiceAdapter, model string, maxInputTokens int, logger *zerolog.Logger) adapter.AIServiceAdapter {
	if maxInputTokens <= 0 {
		return inner
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logger.Warn().Err(err).Msg("token budget disabled: no encoding")
		return inner
	}
	return newBudgetAI(inner, enc, maxInputTokens, logger)
}

func newBudgetAI(inner adapter.AIServiceAdapter, enc Encoder, maxInputTokens int, logger *zerolog.Logger) *budgetAI {
	l := logger.With().Str("component", "ai-budget").Logger()
	return &budgetAI{inner: inner, enc: enc, maxInput: maxInputTokens, log: &l}
}

func (b *budgetAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return b.inner.Chat(ctx, model, b.fit(messages))
}

func (b *budgetAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	return b.inner.ChatWithUsage(ctx, model, b.fit(messages))
}

// fit returns a copy of messages whose last entry is cut to the remaining budget.
func (b *budgetAI) fit(messages []adapter.Message) []adapter.Message {
	if len(messages) == 0 {
		return messages
	}
	used := 0
	for _, m := range messages[:len(messages)-1] {
		used += len(b.enc.Encode(m.Content, nil, nil))
	}
	last := messages[len(messages)-1]
	tokens := b.enc.Encode(last.Content, nil, nil)
	room := b.maxInput - used
	if room < 0 {
		room = 0
	}
	if len(tokens) <= room {
		return messages
	}

	b.log.Warn().Int("tokens", len(tokens)+used).Int("budget", b.maxInput).Msg("input truncated to token budget")
	out := make([]adapter.Message, len(messages))
	copy(out, messages)
	out[len(out)-1].Content = b.enc.Decode(tokens[:room])
	return out
}
