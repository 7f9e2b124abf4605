package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-yt-relay/internal/application"
	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/model"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/adapters/ytdlp"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/infra/metrics"
	"telegram-yt-relay/internal/language"
	"telegram-yt-relay/internal/task"
	"telegram-yt-relay/internal/ytlink"
)

const (
	logTailLines = 200
	chunkLimit   = 3900
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":        r.handleHelpCommand,
		"help":         r.handleHelpCommand,
		"id":           r.handleIDCommand,
		"download":     r.handleDownloadCommand,
		"transcript":   r.handleTranscriptCommand,
		"setlang":      r.handleSetLangCommand,
		"getlang":      r.handleGetLangCommand,
		"tasks":        r.handleTasksCommand,
		"logs":         r.adminOnly(r.handleLogsCommand),
		"checkcookies": r.adminOnly(r.handleCheckCookiesCommand),
	}
}

// adminOnly wraps a handler so only configured admins can run it.
func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.opts.Bot.IsAdmin(message.From.ID) {
			metrics.IncCommand(message.Command(), "denied")
			return r.reply(ctx, message, r.texts.T("reply_not_allowed"))
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message, r.texts.T("help"))
}

func (r *RealTelegramBotAdapter) handleIDCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message, r.texts.T("id_text", message.From.ID, message.Chat.ID))
}

func (r *RealTelegramBotAdapter) handleDownloadCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		return r.reply(ctx, message, r.texts.T("usage_download"))
	}
	return r.submitDownload(ctx, message, args[0])
}

// handleLink treats a plain message carrying a YouTube link as /download.
func (r *RealTelegramBotAdapter) handleLink(ctx context.Context, message *tgbotapi.Message) error {
	link, ok := ytlink.FindURL(message.Text)
	if !ok {
		return nil
	}
	return r.submitDownload(ctx, message, link)
}

func (r *RealTelegramBotAdapter) submitDownload(ctx context.Context, message *tgbotapi.Message, link string) error {
	out, err := r.dispatcher.SubmitDownload(ctx, application.Submission{
		UserID:    message.From.ID,
		ChatID:    message.Chat.ID,
		Private:   message.Chat.IsPrivate(),
		MessageID: message.MessageID,
		Link:      link,
	})
	if err != nil {
		r.log.Error().Err(err).Str("link", link).Msg("submit download")
		return r.reply(ctx, message, r.texts.T("reply_error"))
	}

	switch out.Decision {
	case application.DecisionInvalidURL:
		return r.reply(ctx, message, r.texts.T("reply_invalid_url"))
	case application.DecisionAlreadyProcessing:
		return r.reply(ctx, message, r.texts.T("reply_already_processing"))
	case application.DecisionAlreadyDone:
		rows := [][]adapter.InlineButton{{
			{Text: r.texts.T("button_download_again"), Data: "retry|" + out.VideoID + "|" + out.URL},
			{Text: r.texts.T("button_cancel"), Data: "cancel|" + out.VideoID},
		}}
		return r.out.SendButtons(ctx, message.Chat.ID, r.texts.T("reply_already_done"), rows)
	}
	return nil
}

func (r *RealTelegramBotAdapter) handleTranscriptCommand(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		return r.reply(ctx, message, r.texts.T("usage_transcript"))
	}
	out, err := r.dispatcher.SubmitTranscript(ctx, application.Submission{
		UserID:    message.From.ID,
		ChatID:    message.Chat.ID,
		Private:   message.Chat.IsPrivate(),
		MessageID: message.MessageID,
		Link:      args[0],
		Language:  strings.Join(args[1:], " "),
	})
	if err != nil {
		r.log.Error().Err(err).Str("link", args[0]).Msg("submit transcript")
		return r.reply(ctx, message, r.texts.T("reply_error"))
	}
	return r.renderTranscriptOutcome(ctx, message.Chat.ID, message.MessageID, out)
}

func (r *RealTelegramBotAdapter) renderTranscriptOutcome(ctx context.Context, chatID int64, replyTo int, out application.Outcome) error {
	var text string
	switch out.Decision {
	case application.DecisionQueued, application.DecisionQueueFull:
		return nil
	case application.DecisionInvalidURL:
		text = r.texts.T("reply_invalid_url")
	case application.DecisionNeedLanguage:
		text = r.setLangUsage()
	case application.DecisionUnknownLanguage:
		text = r.unknownLanguage(out.Language, out.Suggestions)
	case application.DecisionAlreadyProcessing:
		text = r.texts.T("reply_transcript_processing")
	case application.DecisionAlreadyDone:
		rows := [][]adapter.InlineButton{{
			{Text: r.texts.T("button_transcript_again"), Data: "retry_transcript|" + out.VideoID + "|" + out.URL + "|" + out.Language},
			{Text: r.texts.T("button_cancel"), Data: "cancel_transcript|" + out.VideoID},
		}}
		return r.out.SendButtons(ctx, chatID, r.texts.T("reply_transcript_done", out.LanguageName), rows)
	default:
		return nil
	}
	_, err := r.out.SendText(ctx, chatID, replyTo, text)
	return err
}

func (r *RealTelegramBotAdapter) handleSetLangCommand(ctx context.Context, message *tgbotapi.Message) error {
	input := strings.TrimSpace(message.CommandArguments())
	if input == "" {
		return r.reply(ctx, message, r.setLangUsage())
	}
	choice, err := r.dispatcher.SetLanguage(ctx, message.From.ID, input)
	if err != nil {
		r.log.Error().Err(err).Msg("set language")
		return r.reply(ctx, message, r.texts.T("reply_error"))
	}
	if !choice.OK {
		return r.reply(ctx, message, r.unknownLanguage(input, choice.Suggestions))
	}
	return r.reply(ctx, message, r.texts.T("lang_set", choice.Name, choice.Code))
}

func (r *RealTelegramBotAdapter) handleGetLangCommand(ctx context.Context, message *tgbotapi.Message) error {
	code, name, err := r.dispatcher.Language(ctx, message.From.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return r.reply(ctx, message, r.texts.T("lang_not_set"))
	case err != nil:
		r.log.Error().Err(err).Msg("get language")
		return r.reply(ctx, message, r.texts.T("reply_error"))
	}
	return r.reply(ctx, message, r.texts.T("lang_current", name, code))
}

func (r *RealTelegramBotAdapter) setLangUsage() string {
	return r.texts.T("usage_setlang", strings.Join(language.Suggestions("", 8), ", "))
}

func (r *RealTelegramBotAdapter) unknownLanguage(input string, suggestions []string) string {
	if len(suggestions) == 0 {
		return r.texts.T("lang_unknown_plain", input)
	}
	return r.texts.T("lang_unknown", input, strings.Join(suggestions, ", "))
}

func (r *RealTelegramBotAdapter) handleTasksCommand(ctx context.Context, message *tgbotapi.Message) error {
	entries := r.dispatcher.Tasks()
	if len(entries) == 0 {
		return r.reply(ctx, message, r.texts.T("tasks_empty"))
	}
	var b strings.Builder
	b.WriteString(r.texts.T("tasks_header", len(entries)))
	for i, e := range entries {
		state := "queued"
		if e.Running {
			state = "running"
		}
		what := describeMeta(e.Meta)
		b.WriteString("\n")
		b.WriteString(r.texts.T("tasks_line", i+1, state, what, shorten(e.Meta.URL, 50), e.Meta.CreatedAt.Format("15:04:05")))
	}
	return r.reply(ctx, message, b.String())
}

func describeMeta(m task.Meta) string {
	if m.Kind == model.TaskKindTranscript {
		return fmt.Sprintf("transcript [%s]", m.Language)
	}
	return string(m.Kind)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func (r *RealTelegramBotAdapter) handleLogsCommand(ctx context.Context, message *tgbotapi.Message) error {
	if r.opts.LogFile == "" {
		return r.reply(ctx, message, r.texts.T("logs_empty"))
	}
	lines, err := logging.TailFile(r.opts.LogFile, logTailLines)
	if err != nil || len(lines) == 0 {
		if err != nil {
			r.log.Warn().Err(err).Msg("tail log file")
		}
		return r.reply(ctx, message, r.texts.T("logs_empty"))
	}
	for _, chunk := range chunkLines(lines, chunkLimit) {
		if _, err := r.out.SendText(ctx, message.Chat.ID, 0, chunk); err != nil {
			return err
		}
	}
	return nil
}

// chunkLines packs lines into messages of at most limit bytes. Longer lines are cut.
func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	for _, ln := range lines {
		if len(ln) > limit {
			ln = ln[:limit]
		}
		if cur.Len() > 0 && cur.Len()+len(ln)+1 > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(ln)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func (r *RealTelegramBotAdapter) handleCheckCookiesCommand(ctx context.Context, message *tgbotapi.Message) error {
	rep, err := ytdlp.Inspect(r.opts.CookiesFile)
	switch {
	case errors.Is(err, domain.ErrCookiesNotLoaded):
		return r.reply(ctx, message, r.texts.T("cookies_missing"))
	case err != nil:
		r.log.Warn().Err(err).Msg("inspect cookies")
		return r.reply(ctx, message, r.texts.T("reply_error"))
	}
	return r.reply(ctx, message, r.cookieReport(rep, time.Now()))
}

func (r *RealTelegramBotAdapter) cookieReport(rep *ytdlp.CookieReport, now time.Time) string {
	var b strings.Builder
	b.WriteString(r.texts.T("cookies_header", rep.Total, len(rep.Auth)))
	for _, c := range rep.Auth {
		icon, when := "✅", "session"
		switch {
		case c.Expires.IsZero():
		case c.Expired(now):
			icon, when = "⚠️", "expired "+c.Expires.Format("2006-01-02 15:04 UTC")
		default:
			when = "expires in " + c.Expires.Sub(now).Truncate(time.Hour).String()
		}
		b.WriteString("\n")
		b.WriteString(r.texts.T("cookies_line", icon, c.Name, when))
	}
	return b.String()
}
