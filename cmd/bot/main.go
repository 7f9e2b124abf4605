// File: cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/application"
	"telegram-yt-relay/internal/config"
	"telegram-yt-relay/internal/delivery"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/domain/ports/repository"
	aiAdapters "telegram-yt-relay/internal/infra/adapters/ai"
	"telegram-yt-relay/internal/infra/adapters/ffmpeg"
	tele "telegram-yt-relay/internal/infra/adapters/telegram"
	"telegram-yt-relay/internal/infra/adapters/youtube"
	"telegram-yt-relay/internal/infra/adapters/ytdlp"
	"telegram-yt-relay/internal/infra/api"
	pg "telegram-yt-relay/internal/infra/db/postgres"
	"telegram-yt-relay/internal/infra/i18n"
	"telegram-yt-relay/internal/infra/logging"
	"telegram-yt-relay/internal/infra/metrics"
	red "telegram-yt-relay/internal/infra/redis"
	"telegram-yt-relay/internal/infra/scheduler"
	"telegram-yt-relay/internal/media"
	"telegram-yt-relay/internal/task"
)

const pollerLockTTL = 30 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "console logs, debug telegram client")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	log := logging.Component(logger, "main")
	metrics.MustRegister()
	if cfg.Runtime.Dev {
		log.Warn().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	ledger := pg.NewLedgerRepo(pool)
	var langs repository.LanguagePreferenceRepository = pg.NewLanguageRepo(pool)

	// ---- Redis (optional) ----
	// limiter stays an untyped nil when redis is off so the front end skips it.
	var limiter tele.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()

		locker := red.NewLocker(redisClient)
		token, err := locker.TryLock(ctx, red.PollerLockKey, pollerLockTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("another instance is polling this bot token")
		}
		go red.HoldLock(ctx, locker, red.PollerLockKey, token, pollerLockTTL, func(err error) {
			log.Error().Err(err).Msg("poller lock lost, shutting down")
			cancel()
		})

		limiter = red.NewRateLimiter(redisClient)
		langs = pg.NewLanguageRepoCacheDecorator(langs, redisClient, cfg.Redis.TTL)
	}

	// ---- AI (router -> concurrency cap -> input budget) ----
	byProvider := map[string]adapter.AIServiceAdapter{"noop": aiAdapters.NewNoopAIAdapter(logger)}
	if cfg.AI.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = g
	}
	if cfg.AI.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = o
	}
	var ai adapter.AIServiceAdapter = aiAdapters.NewMultiAIAdapter(cfg.AI.Provider, byProvider, nil)
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)
	ai = aiAdapters.NewBudgetAI(ai, cfg.AI.DefaultModel, cfg.AI.MaxInputTokens, logger)
	log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.DefaultModel).Msg("ai configured")

	// ---- Telegram transport ----
	bot, err := tele.NewBot(cfg.Bot.Token, cfg.Runtime.Dev, logger)
	if err != nil {
		log.Fatal().Err(err).Str("token", logging.Redact(cfg.Bot.Token, cfg.Runtime.Dev)).Msg("telegram")
	}

	// ---- Tasks ----
	texts := i18n.MustDefault()
	source := ytdlp.New(cfg.Downloader, logger)
	tool := ffmpeg.New(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, logger)
	sender := delivery.NewSender(bot, delivery.Options{
		Attempts:        cfg.Tasks.SendAttempts,
		RateLimitMargin: cfg.Tasks.RateLimitMargin,
		TimeoutBackoff:  cfg.Tasks.TimeoutBackoff,
		ErrorBackoff:    cfg.Tasks.ErrorBackoff,
	}, logger)

	deps := &task.Deps{
		Source:    source,
		Titles:    youtube.NewTitleResolver(logger),
		Splitter:  media.NewSplitter(tool, cfg.Media.WorkDir, logger),
		Sender:    sender,
		Transport: bot,
		AI:        ai,
		Ledger:    ledger,
		Texts:     texts,
		Logger:    logger,
		Settings: task.Settings{
			WorkDir:        cfg.Media.WorkDir,
			Format:         cfg.Media.Format,
			SplitThreshold: cfg.Media.SplitThresholdBytes(),
			PartSize:       cfg.Media.PartSizeBytes(),
			Overlap:        cfg.Media.OverlapSeconds,
			MinFileBytes:   cfg.Media.MinFileBytes,
			BroadcastChat:  cfg.Bot.TargetChannel,
			Timeout:        cfg.Tasks.Timeout,
			TimeoutGrace:   cfg.Tasks.TimeoutGrace,
			Model:          cfg.AI.DefaultModel,
		},
	}
	if !source.HasCookies() {
		log.Warn().Str("path", cfg.Downloader.CookiesFile).Msg("cookies file missing, age-restricted videos will fail")
	}

	sched := scheduler.NewScheduler(cfg.Tasks.QueueSize, logger)
	sched.Start(ctx)
	defer sched.Stop()

	dispatcher := application.NewDispatcher(deps, sched, langs, logger)

	// ---- Front end ----
	front, err := tele.NewRealTelegramBotAdapter(bot, dispatcher, limiter, texts, tele.Options{
		Bot:         cfg.Bot,
		PerMinute:   cfg.RateLimit.PerMinute,
		LogFile:     cfg.Log.File,
		CookiesFile: cfg.Downloader.CookiesFile,
	}, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram front end")
	}
	go func() {
		if err := front.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("telegram polling stopped")
			cancel()
		}
	}()

	// ---- Admin API ----
	var admin *api.Server
	if cfg.Admin.Port > 0 {
		auth := api.NewAuthenticator(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
		if !auth.Enabled() {
			log.Warn().Msg("admin.jwt_secret not set, /api/v1 answers 403")
		}
		admin = api.NewServer(cfg.Admin.Port, dispatcher, ledger, auth, logger)
		go func() {
			if err := admin.Start(); err != nil {
				log.Error().Err(err).Msg("admin api stopped")
			}
		}()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		log.Info().Str("signal", s.String()).Msg("shutdown requested")
	case <-ctx.Done():
	}
	front.StopPolling()
	cancel()

	if admin != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := admin.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("admin api shutdown")
		}
		scancel()
	}
}
