package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-yt-relay/internal/application"
	"telegram-yt-relay/internal/domain/ports/adapter"
)

// cbHandler receives the callback and the "|" separated fields after the action.
type cbHandler func(ctx context.Context, q *tgbotapi.CallbackQuery, args []string) error

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"retry":             r.retryCBRoute,
		"cancel":            r.cancelCBRoute,
		"retry_transcript":  r.retryTranscriptCBRoute,
		"cancel_transcript": r.cancelCBRoute,
	}
}

func statusOf(q *tgbotapi.CallbackQuery) adapter.StatusMessage {
	return adapter.StatusMessage{ChatID: q.Message.Chat.ID, MessageID: q.Message.MessageID}
}

func (r *RealTelegramBotAdapter) cancelCBRoute(ctx context.Context, q *tgbotapi.CallbackQuery, _ []string) error {
	return r.out.EditText(ctx, statusOf(q), r.texts.T("reply_cancelled"))
}

// retryCBRoute handles retry|<vid>|<url>. The button message becomes the status message.
func (r *RealTelegramBotAdapter) retryCBRoute(ctx context.Context, q *tgbotapi.CallbackQuery, args []string) error {
	if len(args) < 2 {
		return r.invalidCallback(ctx, q)
	}
	status := statusOf(q)
	out, err := r.dispatcher.SubmitDownload(ctx, application.Submission{
		UserID:    q.From.ID,
		ChatID:    status.ChatID,
		Private:   q.Message.Chat.IsPrivate(),
		MessageID: status.MessageID,
		Link:      args[1],
		Status:    &status,
		Force:     true,
	})
	if err != nil {
		r.log.Error().Err(err).Str("video_id", args[0]).Msg("retry download")
		return r.out.EditText(ctx, status, r.texts.T("reply_error"))
	}
	switch out.Decision {
	case application.DecisionInvalidURL:
		return r.invalidCallback(ctx, q)
	case application.DecisionAlreadyProcessing:
		return r.out.EditText(ctx, status, r.texts.T("reply_already_processing"))
	}
	return nil
}

// retryTranscriptCBRoute handles retry_transcript|<vid>|<url>[|<lang>].
func (r *RealTelegramBotAdapter) retryTranscriptCBRoute(ctx context.Context, q *tgbotapi.CallbackQuery, args []string) error {
	if len(args) < 2 {
		return r.invalidCallback(ctx, q)
	}
	lang := ""
	if len(args) > 2 {
		lang = args[2]
	}
	status := statusOf(q)
	out, err := r.dispatcher.SubmitTranscript(ctx, application.Submission{
		UserID:    q.From.ID,
		ChatID:    status.ChatID,
		Private:   q.Message.Chat.IsPrivate(),
		MessageID: status.MessageID,
		Link:      args[1],
		Language:  lang,
		Status:    &status,
		Force:     true,
	})
	if err != nil {
		r.log.Error().Err(err).Str("video_id", args[0]).Msg("retry transcript")
		return r.out.EditText(ctx, status, r.texts.T("reply_error"))
	}
	switch out.Decision {
	case application.DecisionAlreadyProcessing:
		return r.out.EditText(ctx, status, r.texts.T("reply_transcript_processing"))
	case application.DecisionQueued, application.DecisionQueueFull:
		return nil
	}
	return r.renderTranscriptOutcome(ctx, status.ChatID, 0, out)
}

func (r *RealTelegramBotAdapter) invalidCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	r.log.Warn().Str("data", q.Data).Msg("malformed callback")
	return r.out.EditText(ctx, statusOf(q), r.texts.T("reply_invalid_url"))
}
