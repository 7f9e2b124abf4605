// Package task holds the two job variants the worker runs and the shared
// run wrapper that enforces the timeout, cleanup and terminal ledger writes.
package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/domain/ports/repository"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/infra/metrics"
)

// Texts renders user-facing messages.
type Texts interface {
	T(key string, args ...interface{}) string
}

type Splitter interface {
	Split(ctx context.Context, input, videoID string, maxPart int64, overlap float64) ([]string, string, error)
}

type Sender interface {
	Send(ctx context.Context, chatID int64, kind adapter.MediaKind, path, caption string) (int, bool)
}

type Settings struct {
	WorkDir        string
	Format         string
	SplitThreshold int64
	PartSize       int64
	Overlap        float64
	MinFileBytes   int64
	BroadcastChat  int64
	Timeout        time.Duration
	TimeoutGrace   time.Duration
	Model          string
}

// Deps are the service handles every task runs against.
type Deps struct {
	Source    adapter.ContentSource
	Titles    adapter.TitleResolver // optional
	Splitter  Splitter
	Sender    Sender
	Transport adapter.Transport
	AI        adapter.AIServiceAdapter
	Ledger    repository.ProcessingLedger
	Texts     Texts
	Logger    *zerolog.Logger
	Settings  Settings
}

// Meta is the shared, read-only description of a task.
type Meta struct {
	ID        string
	Kind      model.TaskKind
	CreatedAt time.Time
	UserID    int64
	ChatID    int64
	URL       string
	VideoID   string
	Language  string
	Title     string
	Status    adapter.StatusMessage
}

// Task is implemented only by *Download and *Transcript.
type Task interface {
	Meta() Meta
	Key() model.LedgerKey
	Run(ctx context.Context) model.Result
	Cleanup()
	sealed()
}

// Describe renders a one-line summary for queue listings.
func Describe(t Task) string {
	switch v := t.(type) {
	case *Download:
		return "download " + v.Meta().VideoID
	case *Transcript:
		m := v.Meta()
		return fmt.Sprintf("transcript %s [%s]", m.VideoID, m.Language)
	default:
		panic(fmt.Sprintf("task: unknown variant %T", t))
	}
}

// job is what the run wrapper needs from a variant.
type job interface {
	Task
	process(ctx context.Context) model.Result
	describe(res model.Result) string
	ledgerMessageID() int
}

func newMeta(kind model.TaskKind, userID, chatID int64, url, videoID string, status adapter.StatusMessage) Meta {
	return Meta{
		ID:        ulid.Make().String(),
		Kind:      kind,
		CreatedAt: time.Now(),
		UserID:    userID,
		ChatID:    chatID,
		URL:       url,
		VideoID:   videoID,
		Status:    status,
	}
}

// execute runs j.process under the task timeout, then always cleans up and
// records the terminal state. It returns only after the body has exited and
// never panics past its boundary.
func execute(ctx context.Context, j job, d *Deps) (res model.Result) {
	meta := j.Meta()
	ctx = logging.WithTaskID(ctx, meta.ID)
	l := logging.With(ctx, d.Logger)
	start := time.Now()
	l.Info().Str("kind", string(meta.Kind)).Str("video_id", meta.VideoID).Msg("task started")

	runCtx, cancel := context.WithTimeout(ctx, d.Settings.Timeout)
	defer cancel()

	done := make(chan model.Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- model.Failed(model.ReasonGeneric, fmt.Errorf("panic: %v", rec))
			}
		}()
		done <- j.process(runCtx)
	}()

	select {
	case res = <-done:
		if !res.OK() && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res = model.TimedOut()
		}
	case <-runCtx.Done():
		cancel()
		// Cleanup and the next queued job must not overlap the body.
		grace := time.NewTimer(d.Settings.TimeoutGrace)
		select {
		case <-done:
		case <-grace.C:
			l.Warn().Dur("grace", d.Settings.TimeoutGrace).Msg("task body still running after timeout, waiting for it to exit")
			<-done
		}
		grace.Stop()
		if ctx.Err() != nil {
			res = model.Failed(model.ReasonGeneric, ctx.Err())
		} else {
			res = model.TimedOut()
		}
	}

	j.Cleanup()
	finish(ctx, j, d, res, l)

	metrics.ObserveTask(string(meta.Kind), string(res.Outcome), string(res.Reason), time.Since(start))
	if res.OK() {
		l.Info().Dur("elapsed", time.Since(start)).Msg("task finished")
	} else {
		l.Warn().Err(res.Err).
			Str("outcome", string(res.Outcome)).
			Str("reason", string(res.Reason)).
			Dur("elapsed", time.Since(start)).
			Msg("task finished")
	}
	return res
}

// finish writes the terminal ledger row and status text on a context that
// outlives the task timeout.
func finish(ctx context.Context, j job, d *Deps, res model.Result, l *zerolog.Logger) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	status := model.LedgerStatusFailed
	if res.OK() {
		status = model.LedgerStatusSuccess
	}
	if err := d.Ledger.Upsert(fctx, j.Key(), j.ledgerMessageID(), status); err != nil {
		l.Error().Err(err).Str("status", string(status)).Msg("ledger write failed")
	}
	setStatus(fctx, d, j.Meta().Status, j.describe(res))
}

func setStatus(ctx context.Context, d *Deps, msg adapter.StatusMessage, text string) {
	if msg.MessageID == 0 || text == "" {
		return
	}
	if err := d.Transport.EditText(ctx, msg, text); err != nil {
		logging.With(ctx, d.Logger).Debug().Err(err).Msg("status edit failed")
	}
}

func timeoutText(d *Deps) string {
	return d.Texts.T("error_timeout", int(d.Settings.Timeout/time.Minute))
}

// base carries the state both variants share.
type base struct {
	mu   sync.RWMutex
	meta Meta
	deps *Deps
	tmp  scratch
}

func (b *base) Meta() Meta {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meta
}

func (b *base) setTitle(title string) {
	b.mu.Lock()
	b.meta.Title = title
	b.mu.Unlock()
}

func (b *base) Cleanup() { b.tmp.clean(logging.With(context.Background(), b.deps.Logger)) }

func (b *base) status(ctx context.Context, text string) {
	setStatus(ctx, b.deps, b.meta.Status, text)
}

func (b *base) sealed() {}

// scratch tracks temporary files and directories owned by a task.
type scratch struct {
	mu    sync.Mutex
	files []string
	dirs  []string
}

func (s *scratch) addFile(p string) {
	s.mu.Lock()
	s.files = append(s.files, p)
	s.mu.Unlock()
}

func (s *scratch) addDir(p string) {
	s.mu.Lock()
	s.dirs = append(s.dirs, p)
	s.mu.Unlock()
}

// clean removes everything tracked so far. Safe to call more than once.
func (s *scratch) clean(l *zerolog.Logger) {
	s.mu.Lock()
	files, dirs := s.files, s.dirs
	s.files, s.dirs = nil, nil
	s.mu.Unlock()

	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.Warn().Err(err).Str("path", f).Msg("cleanup: remove file")
		}
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			l.Warn().Err(err).Str("path", dir).Msg("cleanup: remove dir")
		}
	}
}
