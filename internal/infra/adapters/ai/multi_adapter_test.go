package ai_test

import (
	"context"
	"errors"
	"testing"

	"telegram-yt-relay/internal/domain/ports/adapter"
	ai "telegram-yt-relay/internal/infra/adapters/ai"
)

type stubAI struct {
	name      string
	chatN     int
	cwuN      int
	lastModel string
}

func (s *stubAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	s.chatN++
	s.lastModel = model
	return s.name, nil
}
func (s *stubAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	s.cwuN++
	s.lastModel = model
	return s.name, adapter.Usage{PromptTokens: 1, CompletionTokens: 1}, nil
}

func TestRouting_ExplicitMap_Heuristics_And_Fallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	open := &stubAI{name: "openai"}
	gem := &stubAI{name: "gemini"}

	m := ai.NewMultiAIAdapter(
		"openai",
		map[string]adapter.AIServiceAdapter{"openai": open, "gemini": gem},
		map[string]string{"custom-x": "gemini"},
	)

	// explicit map wins
	_, _ = m.Chat(ctx, "custom-x", nil)
	if gem.chatN != 1 || open.chatN != 0 {
		t.Fatalf("explicit map should route to gemini, got open:%d gem:%d", open.chatN, gem.chatN)
	}

	// gpt-* -> openai
	_, _, _ = m.ChatWithUsage(ctx, "gpt-4o-mini", nil)
	if open.cwuN != 1 || gem.cwuN != 0 {
		t.Fatalf("heuristic gpt-* should go openai")
	}
	open.cwuN, gem.cwuN = 0, 0

	// gemini-* -> gemini
	_, _, _ = m.ChatWithUsage(ctx, "gemini-2.0-flash", nil)
	if gem.cwuN != 1 || open.cwuN != 0 {
		t.Fatalf("heuristic gemini-* should go gemini")
	}

	// unknown -> default provider (openai)
	open.chatN, gem.chatN = 0, 0
	_, _ = m.Chat(ctx, "unknown", nil)
	if open.chatN != 1 || gem.chatN != 0 {
		t.Fatalf("unknown model should go to default provider (openai)")
	}
}

func TestRouting_MissingProviderFallsBackToDefault(t *testing.T) {
	gem := &stubAI{name: "gemini"}
	m := ai.NewMultiAIAdapter("gemini", map[string]adapter.AIServiceAdapter{"gemini": gem}, nil)
	out, err := m.Chat(context.Background(), "gpt-4o", nil)
	if err != nil || out != "gemini" {
		t.Fatalf("got %q, %v", out, err)
	}

	empty := ai.NewMultiAIAdapter("openai", nil, nil)
	if _, err := empty.Chat(context.Background(), "gpt-4o", nil); err == nil {
		t.Fatal("expected an error without providers")
	}
}

type blockingAI struct {
	release chan struct{}
	entered chan struct{}
}

func (b *blockingAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	b.entered <- struct{}{}
	<-b.release
	return "ok", nil
}
func (b *blockingAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	s, err := b.Chat(ctx, model, messages)
	return s, adapter.Usage{}, err
}

func TestLimitedAI_HonoursContextWhileWaiting(t *testing.T) {
	inner := &blockingAI{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	l := ai.NewLimitedAI(inner, 1)

	go func() { _, _ = l.Chat(context.Background(), "m", nil) }()
	<-inner.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Chat(ctx, "m", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(inner.release)
}
