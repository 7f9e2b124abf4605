package task

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/delivery"
	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/i18n"
	"telegram-yt-relay/internal/media"
)

const mib = 1024 * 1024

// --- ledger ---

type memLedger struct {
	mu     sync.Mutex
	rows   map[model.LedgerKey]model.LedgerEntry
	writes []model.LedgerEntry
}

func newMemLedger() *memLedger {
	return &memLedger{rows: map[model.LedgerKey]model.LedgerEntry{}}
}

func (m *memLedger) Upsert(ctx context.Context, key model.LedgerKey, messageID int, status model.LedgerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := model.LedgerEntry{Key: key, MessageID: messageID, Status: status, UpdatedAt: time.Now()}
	m.rows[key] = e
	m.writes = append(m.writes, e)
	return nil
}

func (m *memLedger) Get(ctx context.Context, key model.LedgerKey) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// --- transport ---

type sentMedia struct {
	chatID  int64
	kind    adapter.MediaKind
	name    string
	caption string
	body    []byte
}

type fakeTransport struct {
	mu      sync.Mutex
	edits   []string
	sent    []sentMedia
	failFor func(n int, name string) error // n is the 1-based SendMedia call number
	calls   int
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, replyTo int, text string) (adapter.StatusMessage, error) {
	return adapter.StatusMessage{ChatID: chatID, MessageID: 900}, nil
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
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFor != nil {
		if err := f.failFor(f.calls, file.Name); err != nil {
			return 0, err
		}
	}
	body, _ := io.ReadAll(io.LimitReader(file.Reader, 64))
	f.sent = append(f.sent, sentMedia{chatID: chatID, kind: kind, name: file.Name, caption: caption, body: body})
	return 1000 + len(f.sent), nil
}

func (f *fakeTransport) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

// stuckSender ignores ctx and blocks until released, like an upload the
// transport cannot interrupt.
type stuckSender struct {
	release chan struct{}
	exited  atomic.Bool
}

func (s *stuckSender) Send(ctx context.Context, chatID int64, kind adapter.MediaKind, path, caption string) (int, bool) {
	<-s.release
	s.exited.Store(true)
	return 1, true
}

// --- content source ---

type fakeSource struct {
	meta         *adapter.Metadata
	metaErr      error
	fileSize     int64
	downloadErr  error
	subtitle     string
	subErr       error
	cookies      bool
	block        bool
	panicOnProbe bool

	missing  map[adapter.SubtitleTrack]bool
	gotTrack adapter.SubtitleTrack
	tried    []adapter.SubtitleTrack
}

func (f *fakeSource) ProbeMetadata(ctx context.Context, url string) (*adapter.Metadata, error) {
	if f.panicOnProbe {
		panic("extractor crashed")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.meta, nil
}

func (f *fakeSource) Download(ctx context.Context, url string, opts adapter.DownloadOptions) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	fh, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	defer fh.Close()
	if _, err := fh.WriteString("mp4"); err != nil {
		return err
	}
	return fh.Truncate(f.fileSize)
}

func (f *fakeSource) DownloadSubtitle(ctx context.Context, url string, track adapter.SubtitleTrack, dir string) (string, error) {
	f.tried = append(f.tried, track)
	if f.missing[track] {
		return "", domain.ErrNoSubtitles
	}
	f.gotTrack = track
	if f.subErr != nil {
		return "", f.subErr
	}
	p := dir + "/sub." + track.Language + ".vtt"
	return p, os.WriteFile(p, []byte(f.subtitle), 0o600)
}

func (f *fakeSource) HasCookies() bool { return f.cookies }

// --- media tool, ai, titles ---

type fakeTool struct{ duration float64 }

func (f fakeTool) Duration(ctx context.Context, path string) (float64, error) { return f.duration, nil }
func (f fakeTool) Cut(ctx context.Context, in, out string, start, duration float64) error {
	return os.WriteFile(out, []byte("part"), 0o600)
}

type fakeAI struct {
	mu      sync.Mutex
	prompts []string
	replies []string
	err     error
}

func (f *fakeAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	s, err := f.Chat(ctx, model, messages)
	return s, adapter.Usage{}, err
}

type fakeTitles struct {
	title string
	err   error
}

func (f fakeTitles) Title(ctx context.Context, videoID string) (string, error) { return f.title, f.err }

// --- wiring ---

type harness struct {
	deps      *Deps
	ledger    *memLedger
	transport *fakeTransport
	source    *fakeSource
	ai        *fakeAI
	workDir   string
}

func newHarness(t *testing.T, src *fakeSource, duration float64) *harness {
	t.Helper()
	logger := zerolog.Nop()
	work := t.TempDir()
	tr := &fakeTransport{}
	ai := &fakeAI{}
	ledger := newMemLedger()
	sender := delivery.NewSender(tr, delivery.DefaultOptions(), &logger).
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })

	deps := &Deps{
		Source:    src,
		Splitter:  media.NewSplitter(fakeTool{duration: duration}, work, &logger),
		Sender:    sender,
		Transport: tr,
		AI:        ai,
		Ledger:    ledger,
		Texts:     i18n.MustDefault(),
		Logger:    &logger,
		Settings: Settings{
			WorkDir:        work,
			Format:         "best",
			SplitThreshold: 50 * mib,
			PartSize:       40 * mib,
			Overlap:        5,
			MinFileBytes:   1024,
			BroadcastChat:  -100500,
			Timeout:        10 * time.Minute,
			TimeoutGrace:   time.Second,
			Model:          "test-model",
		},
	}
	return &harness{deps: deps, ledger: ledger, transport: tr, source: src, ai: ai, workDir: work}
}

func (h *harness) status() adapter.StatusMessage {
	return adapter.StatusMessage{ChatID: 42, MessageID: 900}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected work dir to be empty, found %v", names)
	}
}
