package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/subtitles"
)

const untitled = "Untitled"

type TranscriptRequest struct {
	UserID       int64
	ChatID       int64
	URL          string
	VideoID      string
	Language     string
	LanguageName string
	Status       adapter.StatusMessage
}

// Transcript turns caption tracks into a structured full text and a condensed
// version, both in the requested language, delivered as two documents.
type Transcript struct {
	base
	languageName string
}

var _ Task = (*Transcript)(nil)

func NewTranscript(deps *Deps, req TranscriptRequest) *Transcript {
	meta := newMeta(model.TaskKindTranscript, req.UserID, req.ChatID, req.URL, req.VideoID, req.Status)
	meta.Language = req.Language
	name := req.LanguageName
	if name == "" {
		name = req.Language
	}
	return &Transcript{base: base{meta: meta, deps: deps}, languageName: name}
}

func (t *Transcript) Key() model.LedgerKey {
	return model.TranscriptKey(t.meta.ChatID, t.meta.VideoID, t.meta.Language)
}

func (t *Transcript) ledgerMessageID() int { return t.meta.Status.MessageID }

func (t *Transcript) Run(ctx context.Context) model.Result { return execute(ctx, t, t.deps) }

func (t *Transcript) process(ctx context.Context) model.Result {
	tx := t.deps.Texts
	l := logging.With(ctx, t.deps.Logger)

	title := t.resolveTitle(ctx)

	dir, err := os.MkdirTemp(t.deps.Settings.WorkDir, "transcript_")
	if err != nil {
		return t.fail(err)
	}
	t.tmp.addDir(dir)

	t.status(ctx, tx.T("status_transcript_fetching", t.languageName))
	var tracks []adapter.SubtitleTrack
	info, err := t.deps.Source.ProbeMetadata(ctx, t.meta.URL)
	if err != nil {
		// without the track list, ask for the preferred tracks one by one
		l.Warn().Err(err).Msg("metadata lookup failed, trying preferred tracks")
		tracks = subtitles.Preferred(t.meta.Language)
	} else {
		if title == untitled && info.Title != "" {
			title = info.Title
		}
		track, ok := subtitles.SelectTrack(info.Subtitles, info.AutoCaptions, t.meta.Language)
		if !ok {
			t.setTitle(title)
			return model.Failed(model.ReasonNoSubtitles, domain.ErrNoSubtitles)
		}
		tracks = []adapter.SubtitleTrack{track}
	}
	t.setTitle(title)

	subPath, err := t.fetchSubtitle(ctx, tracks, dir)
	if err != nil {
		if errors.Is(err, domain.ErrNoSubtitles) {
			return model.Failed(model.ReasonNoSubtitles, err)
		}
		return t.fail(err)
	}
	raw, err := readSubtitle(subPath)
	if err != nil {
		return t.fail(err)
	}
	if strings.TrimSpace(raw) == "" {
		return model.Failed(model.ReasonEmptyTranscript, domain.ErrEmptyTranscript)
	}

	t.status(ctx, tx.T("status_transcript_cleaning"))
	full, err := t.generate(ctx, structureInstruction(t.languageName), raw)
	if err != nil {
		return t.fail(err)
	}

	t.status(ctx, tx.T("status_transcript_summarizing"))
	short, err := t.generate(ctx, condenseInstruction(t.languageName), full)
	if err != nil {
		return t.fail(err)
	}

	stem := fmt.Sprintf("%s_%s", SanitizeFilename(title), t.meta.Language)
	fullPath := filepath.Join(dir, stem+"_full.txt")
	shortPath := filepath.Join(dir, stem+"_short.txt")
	for path, body := range map[string]string{fullPath: full, shortPath: short} {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			return t.fail(err)
		}
		t.tmp.addFile(path)
	}

	docs := []struct{ path, caption string }{
		{fullPath, tx.T("caption_transcript_full", title)},
		{shortPath, tx.T("caption_transcript_short", title)},
	}
	for _, doc := range docs {
		if _, ok := t.deps.Sender.Send(ctx, t.meta.ChatID, adapter.MediaDocument, doc.path, doc.caption); !ok {
			return t.fail(fmt.Errorf("%w: %s", domain.ErrDeliveryFailed, filepath.Base(doc.path)))
		}
	}
	return model.Succeeded()
}

// fetchSubtitle downloads the first of tracks that exists.
func (t *Transcript) fetchSubtitle(ctx context.Context, tracks []adapter.SubtitleTrack, dir string) (string, error) {
	l := logging.With(ctx, t.deps.Logger)
	err := domain.ErrNoSubtitles
	for _, track := range tracks {
		var path string
		path, err = t.deps.Source.DownloadSubtitle(ctx, t.meta.URL, track, dir)
		if err == nil {
			l.Info().Str("track", track.Language).Bool("auto", track.Auto).Msg("subtitle track selected")
			return path, nil
		}
		if !errors.Is(err, domain.ErrNoSubtitles) {
			return "", err
		}
	}
	return "", err
}

// resolveTitle never fails; it falls back to a placeholder.
func (t *Transcript) resolveTitle(ctx context.Context) string {
	if t.deps.Titles == nil {
		return untitled
	}
	title, err := t.deps.Titles.Title(ctx, t.meta.VideoID)
	if err != nil || strings.TrimSpace(title) == "" {
		logging.With(ctx, t.deps.Logger).Debug().Err(err).Msg("title lookup failed")
		return untitled
	}
	return title
}

func (t *Transcript) generate(ctx context.Context, instruction, text string) (string, error) {
	out, err := t.deps.AI.Chat(ctx, t.deps.Settings.Model, []adapter.Message{
		{Role: "user", Content: instruction + "\n\n" + text},
	})
	if err != nil {
		return "", fmt.Errorf("text generation: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("text generation returned no text")
	}
	return out, nil
}

func (t *Transcript) fail(err error) model.Result {
	reason := model.ReasonGeneric
	if errors.Is(err, domain.ErrDeliveryFailed) {
		reason = model.ReasonDelivery
	}
	return model.Failed(reason, err).
		WithDetail(t.deps.Texts.T("error_transcript_failed", truncate(err.Error(), maxErrorText)))
}

func (t *Transcript) describe(res model.Result) string {
	tx := t.deps.Texts
	switch res.Outcome {
	case model.OutcomeSucceeded:
		return tx.T("status_transcript_delivered")
	case model.OutcomeTimedOut:
		return timeoutText(t.deps)
	}
	switch res.Reason {
	case model.ReasonNoSubtitles:
		return tx.T("error_transcript_unavailable")
	case model.ReasonEmptyTranscript:
		return tx.T("error_transcript_empty")
	}
	if res.Detail != "" {
		return res.Detail
	}
	msg := "unknown error"
	if res.Err != nil {
		msg = truncate(res.Err.Error(), maxErrorText)
	}
	return tx.T("error_transcript_failed", msg)
}

func readSubtitle(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open subtitle: %w", err)
	}
	defer f.Close()
	return subtitles.Parse(f)
}
