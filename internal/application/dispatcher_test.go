package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/application"
	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/i18n"
	"telegram-yt-relay/internal/infra/scheduler"
	"telegram-yt-relay/internal/task"
)

const link = "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=5"

type memLedger struct {
	mu     sync.Mutex
	rows   map[model.LedgerKey]*model.LedgerEntry
	writes []model.LedgerStatus
	getErr error
}

func newMemLedger() *memLedger {
	return &memLedger{rows: map[model.LedgerKey]*model.LedgerEntry{}}
}

func (m *memLedger) Upsert(ctx context.Context, key model.LedgerKey, messageID int, status model.LedgerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = &model.LedgerEntry{Key: key, MessageID: messageID, Status: status}
	m.writes = append(m.writes, status)
	return nil
}

func (m *memLedger) Get(ctx context.Context, key model.LedgerKey) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.rows[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

type memLangs struct {
	codes map[int64]string
}

func (m *memLangs) Get(ctx context.Context, userID int64) (string, error) {
	c, ok := m.codes[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return c, nil
}

func (m *memLangs) Set(ctx context.Context, userID int64, code string) error {
	m.codes[userID] = code
	return nil
}

type fakeTransport struct {
	mu    sync.Mutex
	next  int
	sent  []string
	edits []string
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, replyTo int, text string) (adapter.StatusMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.sent = append(f.sent, text)
	return adapter.StatusMessage{ChatID: chatID, MessageID: 500 + f.next}, nil
}

func (f *fakeTransport) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	return nil
}

func (f *fakeTransport) EditText(ctx context.Context, msg adapter.StatusMessage, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, chatID int64, kind adapter.MediaKind, file adapter.Upload, caption string) (int, error) {
	return 0, errors.New("not used")
}

type fixture struct {
	d      *application.Dispatcher
	ledger *memLedger
	tr     *fakeTransport
	sched  *scheduler.Scheduler
	langs  *memLangs
	texts  *i18n.Translator
}

func newFixture(t *testing.T, maxQueued int) *fixture {
	t.Helper()
	nop := zerolog.Nop()
	f := &fixture{
		ledger: newMemLedger(),
		tr:     &fakeTransport{},
		sched:  scheduler.NewScheduler(maxQueued, &nop),
		langs:  &memLangs{codes: map[int64]string{}},
		texts:  i18n.MustDefault(),
	}
	deps := &task.Deps{
		Transport: f.tr,
		Ledger:    f.ledger,
		Texts:     f.texts,
		Logger:    &nop,
		Settings:  task.Settings{WorkDir: t.TempDir()},
	}
	f.d = application.NewDispatcher(deps, f.sched, f.langs, &nop)
	return f
}

func submission() application.Submission {
	return application.Submission{UserID: 7, ChatID: 7, Private: true, MessageID: 31, Link: link}
}

func TestSubmitDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("should queue a new request and write processing", func(t *testing.T) {
		f := newFixture(t, 10)
		out, err := f.d.SubmitDownload(ctx, submission())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Decision != application.DecisionQueued || out.VideoID != "dQw4w9WgXcQ" {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		if out.URL != "https://youtu.be/dQw4w9WgXcQ" {
			t.Errorf("url = %s", out.URL)
		}
		key := model.DownloadKey(7, "dQw4w9WgXcQ")
		if !f.sched.IsActive(key) {
			t.Error("expected key to be active")
		}
		row, _ := f.ledger.Get(ctx, key)
		if row == nil || row.Status != model.LedgerStatusProcessing || row.MessageID != 31 {
			t.Errorf("unexpected ledger row: %+v", row)
		}
		if len(f.tr.sent) != 1 || f.tr.sent[0] != f.texts.T("status_queued") {
			t.Errorf("status texts = %v", f.tr.sent)
		}
		if out.Task.Meta().Status.MessageID != 501 {
			t.Errorf("status handle not threaded into task: %+v", out.Task.Meta().Status)
		}
	})

	t.Run("should reject links without a video id", func(t *testing.T) {
		f := newFixture(t, 10)
		s := submission()
		s.Link = "https://vimeo.com/12345"
		out, err := f.d.SubmitDownload(ctx, s)
		if err != nil || out.Decision != application.DecisionInvalidURL {
			t.Fatalf("got %+v, %v", out, err)
		}
		if len(f.ledger.writes) != 0 || len(f.tr.sent) != 0 {
			t.Error("invalid links must not touch the ledger or the chat")
		}
	})

	t.Run("should not create a second task while one is live", func(t *testing.T) {
		f := newFixture(t, 10)
		if _, err := f.d.SubmitDownload(ctx, submission()); err != nil {
			t.Fatal(err)
		}
		out, err := f.d.SubmitDownload(ctx, submission())
		if err != nil || out.Decision != application.DecisionAlreadyProcessing {
			t.Fatalf("got %+v, %v", out, err)
		}
		if f.sched.Len() != 1 {
			t.Errorf("queue length = %d", f.sched.Len())
		}
	})

	t.Run("should offer a retry when already delivered", func(t *testing.T) {
		f := newFixture(t, 10)
		_ = f.ledger.Upsert(ctx, model.DownloadKey(7, "dQw4w9WgXcQ"), 31, model.LedgerStatusSuccess)
		out, err := f.d.SubmitDownload(ctx, submission())
		if err != nil || out.Decision != application.DecisionAlreadyDone {
			t.Fatalf("got %+v, %v", out, err)
		}
		if f.sched.Len() != 0 {
			t.Error("nothing should be queued")
		}
	})

	t.Run("should re-queue a stale processing row", func(t *testing.T) {
		f := newFixture(t, 10)
		_ = f.ledger.Upsert(ctx, model.DownloadKey(7, "dQw4w9WgXcQ"), 31, model.LedgerStatusProcessing)
		out, err := f.d.SubmitDownload(ctx, submission())
		if err != nil || out.Decision != application.DecisionQueued {
			t.Fatalf("got %+v, %v", out, err)
		}
	})

	t.Run("should reuse the button message on forced retry", func(t *testing.T) {
		f := newFixture(t, 10)
		_ = f.ledger.Upsert(ctx, model.DownloadKey(7, "dQw4w9WgXcQ"), 31, model.LedgerStatusSuccess)
		s := submission()
		s.Force = true
		s.Status = &adapter.StatusMessage{ChatID: 7, MessageID: 77}
		out, err := f.d.SubmitDownload(ctx, s)
		if err != nil || out.Decision != application.DecisionQueued {
			t.Fatalf("got %+v, %v", out, err)
		}
		if len(f.tr.sent) != 0 {
			t.Error("retry must not send a new status message")
		}
		if len(f.tr.edits) != 1 || f.tr.edits[0] != f.texts.T("reply_redownloading") {
			t.Errorf("edits = %v", f.tr.edits)
		}
		row, _ := f.ledger.Get(ctx, model.DownloadKey(7, "dQw4w9WgXcQ"))
		if row.MessageID != 77 || row.Status != model.LedgerStatusProcessing {
			t.Errorf("unexpected row: %+v", row)
		}
	})

	t.Run("should mark failed when the queue is full", func(t *testing.T) {
		f := newFixture(t, 1)
		if _, err := f.d.SubmitDownload(ctx, submission()); err != nil {
			t.Fatal(err)
		}
		s := submission()
		s.Link = "https://youtu.be/aaaaaaaaaaa"
		out, err := f.d.SubmitDownload(ctx, s)
		if err != nil || out.Decision != application.DecisionQueueFull {
			t.Fatalf("got %+v, %v", out, err)
		}
		row, _ := f.ledger.Get(ctx, model.DownloadKey(7, "aaaaaaaaaaa"))
		if row.Status != model.LedgerStatusFailed {
			t.Errorf("status = %s", row.Status)
		}
		if f.tr.edits[len(f.tr.edits)-1] != f.texts.T("reply_queue_full") {
			t.Errorf("edits = %v", f.tr.edits)
		}
	})

	t.Run("should surface ledger lookup errors", func(t *testing.T) {
		f := newFixture(t, 10)
		f.ledger.getErr = errors.New("db down")
		if _, err := f.d.SubmitDownload(ctx, submission()); err == nil {
			t.Fatal("expected error")
		}
		if f.sched.Len() != 0 {
			t.Error("nothing should be queued")
		}
	})
}

func TestSubmitTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("should ask for a language when none is stored", func(t *testing.T) {
		f := newFixture(t, 10)
		out, err := f.d.SubmitTranscript(ctx, submission())
		if err != nil || out.Decision != application.DecisionNeedLanguage {
			t.Fatalf("got %+v, %v", out, err)
		}
	})

	t.Run("should use the stored preference and key by language", func(t *testing.T) {
		f := newFixture(t, 10)
		f.langs.codes[7] = "es"
		out, err := f.d.SubmitTranscript(ctx, submission())
		if err != nil || out.Decision != application.DecisionQueued {
			t.Fatalf("got %+v, %v", out, err)
		}
		if out.Language != "es" || out.LanguageName != "Spanish" {
			t.Errorf("language = %s %s", out.Language, out.LanguageName)
		}
		key := model.TranscriptKey(7, "dQw4w9WgXcQ", "es")
		row, _ := f.ledger.Get(ctx, key)
		if row == nil || row.MessageID != 501 {
			t.Errorf("transcript rows carry the status message id: %+v", row)
		}
		if !f.sched.IsActive(key) {
			t.Error("expected key to be active")
		}
	})

	t.Run("should let an explicit language override the preference", func(t *testing.T) {
		f := newFixture(t, 10)
		f.langs.codes[7] = "es"
		s := submission()
		s.Language = "German"
		out, err := f.d.SubmitTranscript(ctx, s)
		if err != nil || out.Language != "de" {
			t.Fatalf("got %+v, %v", out, err)
		}
	})

	t.Run("should suggest on unknown language", func(t *testing.T) {
		f := newFixture(t, 10)
		s := submission()
		s.Language = "klingonese"
		out, err := f.d.SubmitTranscript(ctx, s)
		if err != nil || out.Decision != application.DecisionUnknownLanguage {
			t.Fatalf("got %+v, %v", out, err)
		}
	})

	t.Run("should treat other languages as distinct requests", func(t *testing.T) {
		f := newFixture(t, 10)
		s := submission()
		s.Language = "es"
		if _, err := f.d.SubmitTranscript(ctx, s); err != nil {
			t.Fatal(err)
		}
		s.Language = "fr"
		out, err := f.d.SubmitTranscript(ctx, s)
		if err != nil || out.Decision != application.DecisionQueued {
			t.Fatalf("got %+v, %v", out, err)
		}
		if f.sched.Len() != 2 {
			t.Errorf("queue length = %d", f.sched.Len())
		}
	})
}

func TestLanguagePreference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	t.Run("should store a normalized code", func(t *testing.T) {
		choice, err := f.d.SetLanguage(ctx, 7, " Russian ")
		if err != nil || !choice.OK || choice.Code != "ru" {
			t.Fatalf("got %+v, %v", choice, err)
		}
		code, name, err := f.d.Language(ctx, 7)
		if err != nil || code != "ru" || name != "Russian" {
			t.Fatalf("got %s %s %v", code, name, err)
		}
	})

	t.Run("should not store unknown input", func(t *testing.T) {
		choice, err := f.d.SetLanguage(ctx, 8, "xx-nonsense")
		if err != nil || choice.OK {
			t.Fatalf("got %+v, %v", choice, err)
		}
		if _, _, err := f.d.Language(ctx, 8); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestTasks(t *testing.T) {
	f := newFixture(t, 10)
	if _, err := f.d.SubmitDownload(context.Background(), submission()); err != nil {
		t.Fatal(err)
	}
	entries := f.d.Tasks()
	if len(entries) != 1 || entries[0].Running || entries[0].Meta.Kind != model.TaskKindDownload {
		t.Fatalf("unexpected snapshot: %+v", entries)
	}
}
