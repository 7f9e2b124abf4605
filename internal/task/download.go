package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/infra/metrics"
)

const maxErrorText = 100

type DownloadRequest struct {
	UserID           int64
	ChatID           int64
	Private          bool
	TriggerMessageID int
	URL              string
	VideoID          string
	Status           adapter.StatusMessage
}

// Download fetches a video at a small quality tier and posts it, split into
// overlapping parts when it is over the upload threshold.
type Download struct {
	base
	private   bool
	triggerID int
	workPath  string
}

var _ Task = (*Download)(nil)

func NewDownload(deps *Deps, req DownloadRequest) *Download {
	return &Download{
		base: base{
			meta: newMeta(model.TaskKindDownload, req.UserID, req.ChatID, req.URL, req.VideoID, req.Status),
			deps: deps,
		},
		private:   req.Private,
		triggerID: req.TriggerMessageID,
		workPath:  filepath.Join(deps.Settings.WorkDir, fmt.Sprintf("video_%s.mp4", req.VideoID)),
	}
}

func (d *Download) Key() model.LedgerKey { return model.DownloadKey(d.meta.ChatID, d.meta.VideoID) }

// ledgerMessageID keys rows by the triggering message so a retry from the
// same request stays consistent.
func (d *Download) ledgerMessageID() int { return d.triggerID }

func (d *Download) Run(ctx context.Context) model.Result { return execute(ctx, d, d.deps) }

// Destination is the requesting chat for private chats and the broadcast
// chat otherwise.
func (d *Download) Destination() int64 {
	if d.private || d.deps.Settings.BroadcastChat == 0 {
		return d.meta.ChatID
	}
	return d.deps.Settings.BroadcastChat
}

func (d *Download) process(ctx context.Context) model.Result {
	s := d.deps.Settings
	tx := d.deps.Texts
	l := logging.With(ctx, d.deps.Logger)

	if err := os.Remove(d.workPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.Warn().Err(err).Str("path", d.workPath).Msg("remove stale file")
	}
	d.tmp.addFile(d.workPath)

	d.status(ctx, tx.T("status_fetching_info"))
	info, err := d.deps.Source.ProbeMetadata(ctx, d.meta.URL)
	if err != nil {
		return d.classify(err)
	}
	title := info.Title
	if title == "" {
		title = d.meta.VideoID
	}
	d.setTitle(title)

	d.status(ctx, tx.T("status_downloading"))
	if err := d.deps.Source.Download(ctx, d.meta.URL, adapter.DownloadOptions{Format: s.Format, Output: d.workPath}); err != nil {
		return d.classify(err)
	}

	st, err := os.Stat(d.workPath)
	if err != nil || st.Size() < s.MinFileBytes {
		return model.Failed(model.ReasonTooSmall, domain.ErrFileTooSmall)
	}
	size := st.Size()
	dest := d.Destination()
	l.Info().Int64("size", size).Int64("dest", dest).Msg("download complete")

	if size <= s.SplitThreshold {
		d.status(ctx, tx.T("status_sending"))
		if _, ok := d.deps.Sender.Send(ctx, dest, adapter.MediaVideo, d.workPath, tx.T("caption_video", title)); !ok {
			return model.Failed(model.ReasonDelivery, domain.ErrDeliveryFailed).WithDetail(tx.T("error_send"))
		}
		return model.Succeeded()
	}

	d.status(ctx, tx.T("status_splitting", float64(size)/(1024*1024)))
	parts, dir, err := d.deps.Splitter.Split(ctx, d.workPath, d.meta.VideoID, s.PartSize, s.Overlap)
	if err != nil {
		return model.Failed(model.ReasonGeneric, err).WithDetail(tx.T("error_download", truncate(err.Error(), maxErrorText)))
	}
	d.tmp.addDir(dir)
	for _, p := range parts {
		d.tmp.addFile(p)
	}
	metrics.AddSplitParts(len(parts))

	n := len(parts)
	for i, p := range parts {
		d.status(ctx, tx.T("status_sending_part", i+1, n))
		caption := tx.T("caption_video_part", title, i+1, n)
		if _, ok := d.deps.Sender.Send(ctx, dest, adapter.MediaVideo, p, caption); !ok {
			err := fmt.Errorf("%w: part %d/%d", domain.ErrDeliveryFailed, i+1, n)
			return model.Failed(model.ReasonDelivery, err).WithDetail(tx.T("error_send_part", i+1, n))
		}
		d.status(ctx, tx.T("status_part_sent", i+1, n))
	}
	return model.Succeeded()
}

// classify maps content source failures onto the failure taxonomy.
func (d *Download) classify(err error) model.Result {
	switch {
	case errors.Is(err, domain.ErrAgeRestricted):
		return model.Failed(model.ReasonAgeRestricted, err)
	case errors.Is(err, domain.ErrUnavailable):
		return model.Failed(model.ReasonUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return model.Failed(model.ReasonGeneric, err)
	default:
		return model.Failed(model.ReasonGeneric, err).
			WithDetail(d.deps.Texts.T("error_download", truncate(err.Error(), maxErrorText)))
	}
}

func (d *Download) describe(res model.Result) string {
	tx := d.deps.Texts
	switch res.Outcome {
	case model.OutcomeSucceeded:
		return tx.T("status_sent")
	case model.OutcomeTimedOut:
		return timeoutText(d.deps)
	}
	switch res.Reason {
	case model.ReasonAgeRestricted:
		if d.deps.Source.HasCookies() {
			return tx.T("error_age_restricted_cookies")
		}
		return tx.T("error_age_restricted_no_cookies")
	case model.ReasonUnavailable:
		return tx.T("error_unavailable")
	case model.ReasonTooSmall:
		return tx.T("error_too_small")
	}
	if res.Detail != "" {
		return res.Detail
	}
	return tx.T("error_generic")
}
