package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/application"
	"telegram-yt-relay/internal/config"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/infra/metrics"
	red "telegram-yt-relay/internal/infra/redis"
	"telegram-yt-relay/internal/infra/scheduler"
	"telegram-yt-relay/internal/infra/worker"
	"telegram-yt-relay/internal/ytlink"
)

// Dispatcher is the application surface the front end calls into.
type Dispatcher interface {
	SubmitDownload(ctx context.Context, s application.Submission) (application.Outcome, error)
	SubmitTranscript(ctx context.Context, s application.Submission) (application.Outcome, error)
	SetLanguage(ctx context.Context, userID int64, input string) (application.LanguageChoice, error)
	Language(ctx context.Context, userID int64) (code, name string, err error)
	Tasks() []scheduler.Entry
}

var _ Dispatcher = (*application.Dispatcher)(nil)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Texts interface {
	T(key string, args ...interface{}) string
}

type Options struct {
	Bot         config.BotConfig
	PerMinute   int    // command budget per user, 0 disables
	LogFile     string // served by /logs
	CookiesFile string // inspected by /checkcookies
}

// RealTelegramBotAdapter polls updates and routes them to the dispatcher.
type RealTelegramBotAdapter struct {
	bot        *Bot // nil in tests
	out        adapter.Transport
	dispatcher Dispatcher
	limiter    RateLimiter
	texts      Texts
	opts       Options
	log        *zerolog.Logger

	mu            sync.Mutex
	cancelPolling context.CancelFunc
	stopped       bool
}

func NewRealTelegramBotAdapter(bot *Bot, d Dispatcher, limiter RateLimiter, texts Texts, opts Options, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is nil")
	}
	if d == nil {
		return nil, errors.New("dispatcher is nil")
	}
	r := newAdapter(bot, d, limiter, texts, opts, logger)
	r.bot = bot
	return r, nil
}

func newAdapter(out adapter.Transport, d Dispatcher, limiter RateLimiter, texts Texts, opts Options, logger *zerolog.Logger) *RealTelegramBotAdapter {
	if opts.Bot.Workers <= 0 {
		opts.Bot.Workers = 4
	}
	l := logger.With().Str("component", "telegram_frontend").Logger()
	return &RealTelegramBotAdapter{
		out:        out,
		dispatcher: d,
		limiter:    limiter,
		texts:      texts,
		opts:       opts,
		log:        &l,
	}
}

// StartPolling blocks until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	ctx, cancel := r.pollContext(ctx)
	defer cancel()

	r.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.api.GetUpdatesChan(u)
	defer r.bot.api.StopReceivingUpdates()

	pool := worker.NewPool(r.opts.Bot.Workers, r.log)
	pool.Start(ctx)
	defer pool.Stop()

	r.log.Info().Int("workers", r.opts.Bot.Workers).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("polling stopped")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return errors.New("update channel closed")
			}
			if err := pool.Submit(ctx, func(ctx context.Context) error { return r.handleUpdate(ctx, up) }); err != nil {
				return err
			}
		}
	}
}

// pollContext derives the polling context. It is already cancelled when
// StopPolling ran first.
func (r *RealTelegramBotAdapter) pollContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPolling = cancel
	if r.stopped {
		cancel()
	}
	return ctx, cancel
}

// StopPolling is safe to call from any goroutine, before or after StartPolling.
func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) registerCommands() {
	cmds := []tgbotapi.BotCommand{
		{Command: "download", Description: "Download a YouTube video"},
		{Command: "transcript", Description: "Transcript and summary"},
		{Command: "setlang", Description: "Set transcript language"},
		{Command: "getlang", Description: "Show transcript language"},
		{Command: "tasks", Description: "Show the queue"},
		{Command: "id", Description: "Show your ids"},
		{Command: "help", Description: "Help"},
	}
	if _, err := r.bot.api.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		r.log.Warn().Err(err).Msg("set menu commands failed")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return nil
	}

	command := "message"
	handler := r.handleLink
	if msg.IsCommand() {
		command = msg.Command()
		h, ok := r.commandRoutes()[command]
		if !ok {
			return nil
		}
		handler = h
	} else if _, ok := ytlink.FindURL(msg.Text); !ok {
		r.log.Debug().Int64("user_id", msg.From.ID).Int64("chat_id", msg.Chat.ID).Msg("ignoring plain message")
		return nil
	}

	ctx = logging.WithChatID(logging.WithUserID(ctx, msg.From.ID), msg.Chat.ID)
	l := logging.With(ctx, r.log)
	if !r.allowed(msg.From.ID, msg.Chat.ID) {
		metrics.IncCommand(command, "denied")
		l.Warn().Str("command", command).Msg("blocked")
		return r.reply(ctx, msg, r.texts.T("reply_not_allowed"))
	}
	if !r.allow(ctx, msg.From.ID, command) {
		metrics.IncCommand(command, "rate_limited")
		return r.reply(ctx, msg, r.texts.T("reply_rate_limited"))
	}

	l.Info().Str("command", command).Msg("command")
	if err := handler(ctx, msg); err != nil {
		metrics.IncCommand(command, "error")
		return err
	}
	metrics.IncCommand(command, "ok")
	return nil
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil || query.Message == nil || query.Message.Chat == nil {
		return errors.New("invalid callback query")
	}
	if r.bot != nil {
		defer r.bot.AnswerCallback(query.ID)
	}

	parts := strings.Split(strings.TrimSpace(query.Data), "|")
	action := parts[0]
	fn, ok := r.cbRoutes()[action]
	if !ok {
		r.log.Warn().Str("data", query.Data).Msg("unknown callback")
		return nil
	}

	chatID := query.Message.Chat.ID
	ctx = logging.WithChatID(logging.WithUserID(ctx, query.From.ID), chatID)
	if !r.allowed(query.From.ID, chatID) {
		metrics.IncCommand("cb:"+action, "denied")
		return nil
	}
	if !r.allow(ctx, query.From.ID, "cb:"+action) {
		metrics.IncCommand("cb:"+action, "rate_limited")
		_, err := r.out.SendText(ctx, chatID, 0, r.texts.T("reply_rate_limited"))
		return err
	}

	if err := fn(ctx, query, parts[1:]); err != nil {
		metrics.IncCommand("cb:"+action, "error")
		return err
	}
	metrics.IncCommand("cb:"+action, "ok")
	return nil
}

// allowed admits listed users in their private chat or in the target channel.
func (r *RealTelegramBotAdapter) allowed(userID, chatID int64) bool {
	b := r.opts.Bot
	if !b.IsAllowed(userID) && !b.IsAdmin(userID) {
		return false
	}
	return chatID == userID || (b.TargetChannel != 0 && chatID == b.TargetChannel)
}

// allow applies the per-user command budget. Limiter failures let the request through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, command string) bool {
	if r.limiter == nil || r.opts.PerMinute <= 0 {
		return true
	}
	ok, err := r.limiter.Allow(ctx, red.UserCommandKey(userID, command), r.opts.PerMinute, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	return ok
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, msg *tgbotapi.Message, text string) error {
	_, err := r.out.SendText(ctx, msg.Chat.ID, msg.MessageID, text)
	return err
}
