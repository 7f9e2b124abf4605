package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/domain/ports/repository"
	"telegram-yt-relay/internal/infra/scheduler"
	"telegram-yt-relay/internal/language"
	"telegram-yt-relay/internal/task"
	"telegram-yt-relay/internal/ytlink"
)

// Decision tells the front end how a submission was handled.
type Decision string

const (
	DecisionQueued            Decision = "queued"
	DecisionAlreadyProcessing Decision = "already_processing"
	DecisionAlreadyDone       Decision = "already_done"
	DecisionQueueFull         Decision = "queue_full"
	DecisionInvalidURL        Decision = "invalid_url"
	DecisionNeedLanguage      Decision = "need_language"
	DecisionUnknownLanguage   Decision = "unknown_language"
)

// Submission is one user request as seen by the front end.
type Submission struct {
	UserID    int64
	ChatID    int64
	Private   bool
	MessageID int
	Link      string
	// Language overrides the stored preference for transcripts.
	Language string
	// Status reuses a message the user already sees (retry buttons)
	// instead of replying with a new one.
	Status *adapter.StatusMessage
	// Force skips the already-delivered shortcut.
	Force bool
}

type Outcome struct {
	Decision     Decision
	VideoID      string
	URL          string
	Language     string
	LanguageName string
	Suggestions  []string
	Task         task.Task
}

// LanguageChoice is the result of SetLanguage.
type LanguageChoice struct {
	OK          bool
	Code        string
	Name        string
	Suggestions []string
}

// Dispatcher validates requests, consults the ledger and the scheduler's
// running-set and turns accepted requests into queued tasks.
type Dispatcher struct {
	deps  *task.Deps
	queue Queue
	langs repository.LanguagePreferenceRepository
	log   *zerolog.Logger
}

func NewDispatcher(deps *task.Deps, queue Queue, langs repository.LanguagePreferenceRepository, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "dispatcher").Logger()
	return &Dispatcher{deps: deps, queue: queue, langs: langs, log: &l}
}

// SubmitDownload queues a download for the linked video unless one is already
// live for the chat, or it was delivered before and Force is not set.
func (d *Dispatcher) SubmitDownload(ctx context.Context, s Submission) (Outcome, error) {
	vid, ok := ytlink.ExtractVideoID(s.Link)
	if !ok {
		return Outcome{Decision: DecisionInvalidURL}, nil
	}
	out := Outcome{VideoID: vid, URL: ytlink.CleanURL(vid)}

	key := model.DownloadKey(s.ChatID, vid)
	if dec, err := d.precheck(ctx, key, s.Force); err != nil || dec != "" {
		out.Decision = dec
		return out, err
	}

	text := d.deps.Texts.T("status_queued")
	if s.Status != nil {
		text = d.deps.Texts.T("reply_redownloading")
	}
	status, err := d.openStatus(ctx, s, text)
	if err != nil {
		return out, fmt.Errorf("send status: %w", err)
	}

	// Download rows carry the triggering message; a retry button message
	// stands in for it.
	messageID := s.MessageID
	if s.Status != nil {
		messageID = s.Status.MessageID
	}
	t := task.NewDownload(d.deps, task.DownloadRequest{
		UserID:           s.UserID,
		ChatID:           s.ChatID,
		Private:          s.Private,
		TriggerMessageID: messageID,
		URL:              out.URL,
		VideoID:          vid,
		Status:           status,
	})
	return d.enqueue(ctx, t, messageID, status, out)
}

// SubmitTranscript queues a transcript in the requested language, falling back
// to the user's stored preference.
func (d *Dispatcher) SubmitTranscript(ctx context.Context, s Submission) (Outcome, error) {
	vid, ok := ytlink.ExtractVideoID(s.Link)
	if !ok {
		return Outcome{Decision: DecisionInvalidURL}, nil
	}
	out := Outcome{VideoID: vid, URL: ytlink.CleanURL(vid)}

	if s.Language != "" {
		code, name, ok := language.Normalize(s.Language)
		if !ok {
			out.Decision = DecisionUnknownLanguage
			out.Language = s.Language
			out.Suggestions = language.Suggestions(s.Language, 5)
			return out, nil
		}
		out.Language, out.LanguageName = code, name
	} else {
		code, err := d.langs.Get(ctx, s.UserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			out.Decision = DecisionNeedLanguage
			return out, nil
		case err != nil:
			return out, fmt.Errorf("language lookup: %w", err)
		}
		out.Language, out.LanguageName = code, language.Name(code)
	}

	key := model.TranscriptKey(s.ChatID, vid, out.Language)
	if dec, err := d.precheck(ctx, key, s.Force); err != nil || dec != "" {
		out.Decision = dec
		return out, err
	}

	text := d.deps.Texts.T("status_queued")
	if s.Status != nil {
		text = d.deps.Texts.T("status_requeued")
	}
	status, err := d.openStatus(ctx, s, text)
	if err != nil {
		return out, fmt.Errorf("send status: %w", err)
	}

	t := task.NewTranscript(d.deps, task.TranscriptRequest{
		UserID:       s.UserID,
		ChatID:       s.ChatID,
		URL:          out.URL,
		VideoID:      vid,
		Language:     out.Language,
		LanguageName: out.LanguageName,
		Status:       status,
	})
	return d.enqueue(ctx, t, status.MessageID, status, out)
}

// precheck returns a non-empty decision when the request must not be queued.
// A "processing" row with no live task is stale and gets re-queued.
func (d *Dispatcher) precheck(ctx context.Context, key model.LedgerKey, force bool) (Decision, error) {
	if d.queue.IsActive(key) {
		return DecisionAlreadyProcessing, nil
	}
	if force {
		return "", nil
	}
	entry, err := d.deps.Ledger.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("ledger lookup: %w", err)
	}
	switch entry.Status {
	case model.LedgerStatusSuccess:
		return DecisionAlreadyDone, nil
	case model.LedgerStatusProcessing:
		d.log.Info().Str("key", key.String()).Msg("stale processing row, re-queueing")
	}
	return "", nil
}

func (d *Dispatcher) openStatus(ctx context.Context, s Submission, text string) (adapter.StatusMessage, error) {
	if s.Status != nil {
		if err := d.deps.Transport.EditText(ctx, *s.Status, text); err != nil {
			d.log.Debug().Err(err).Msg("status edit failed")
		}
		return *s.Status, nil
	}
	return d.deps.Transport.SendText(ctx, s.ChatID, s.MessageID, text)
}

func (d *Dispatcher) enqueue(ctx context.Context, t task.Task, messageID int, status adapter.StatusMessage, out Outcome) (Outcome, error) {
	key := t.Key()
	if err := d.deps.Ledger.Upsert(ctx, key, messageID, model.LedgerStatusProcessing); err != nil {
		d.edit(ctx, status, d.deps.Texts.T("reply_error"))
		return out, fmt.Errorf("ledger write: %w", err)
	}

	err := d.queue.Enqueue(t)
	switch {
	case err == nil:
		out.Decision = DecisionQueued
		out.Task = t
		d.log.Info().Str("key", key.String()).Str("task_id", t.Meta().ID).Msg("task queued")
		return out, nil
	case errors.Is(err, domain.ErrAlreadyQueued):
		// lost a race with an identical request
		out.Decision = DecisionAlreadyProcessing
		d.edit(ctx, status, d.deps.Texts.T("reply_already_processing"))
		return out, nil
	case errors.Is(err, domain.ErrQueueFull):
		out.Decision = DecisionQueueFull
		if err := d.deps.Ledger.Upsert(ctx, key, messageID, model.LedgerStatusFailed); err != nil {
			d.log.Error().Err(err).Str("key", key.String()).Msg("ledger write failed")
		}
		d.edit(ctx, status, d.deps.Texts.T("reply_queue_full"))
		return out, nil
	default:
		return out, fmt.Errorf("enqueue: %w", err)
	}
}

func (d *Dispatcher) edit(ctx context.Context, status adapter.StatusMessage, text string) {
	if err := d.deps.Transport.EditText(ctx, status, text); err != nil {
		d.log.Debug().Err(err).Msg("status edit failed")
	}
}

// SetLanguage stores the user's default transcript language. Unknown input
// yields OK=false with suggestions and writes nothing.
func (d *Dispatcher) SetLanguage(ctx context.Context, userID int64, input string) (LanguageChoice, error) {
	input = strings.TrimSpace(input)
	code, name, ok := language.Normalize(input)
	if !ok {
		return LanguageChoice{Suggestions: language.Suggestions(input, 5)}, nil
	}
	if err := d.langs.Set(ctx, userID, code); err != nil {
		return LanguageChoice{}, fmt.Errorf("store language: %w", err)
	}
	return LanguageChoice{OK: true, Code: code, Name: name}, nil
}

// Language returns the stored preference, or domain.ErrNotFound.
func (d *Dispatcher) Language(ctx context.Context, userID int64) (code, name string, err error) {
	code, err = d.langs.Get(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return code, language.Name(code), nil
}

// Tasks lists the running task first, then the queue in order.
func (d *Dispatcher) Tasks() []scheduler.Entry { return d.queue.Snapshot() }
