package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"assemblydigest/internal/assembly"
	"assemblydigest/internal/config"
	"assemblydigest/internal/database"
	"assemblydigest/internal/document"
	"assemblydigest/internal/llm"
	"assemblydigest/internal/notifier"
	"assemblydigest/internal/pipeline"
	"assemblydigest/internal/ratelimiter"
	"assemblydigest/internal/updater"
)

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	limiter  *ratelimiter.Limiter
	pipeline *pipeline.Pipeline
	loader   *document.Loader
	log      *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	intervals := map[string]time.Duration{
		llm.RateLimiterKey: cfg.ModelRequestInterval,
	}
	if cfg.TelegramEnabled() {
		intervals[notifier.ChatKey(cfg.TelegramChatID)] = notifier.ChatInterval
	}

	limiter := ratelimiter.New(0, intervals, log)

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Limiter: limiter,
	})
	if err != nil {
		limiter.Stop()

		return nil, fmt.Errorf("create openai client: %w", err)
	}
	log.InfoContext(ctx, "OpenAI client is initialized",
		"provider", "openai",
		"model", cfg.OpenAIModel)

	extractor := llm.NewRetrying(client, llm.DefaultBackoff(), log)

	p := pipeline.New(extractor, pipeline.Options{
		MaxChunkLength: cfg.MaxChunkLength,
		MapConcurrency: cfg.MapConcurrency,
	}, log)

	if cfg.DocumentParseAPIKey == "" {
		log.WarnContext(ctx, "DOCUMENT_PARSE_API_KEY is missing so parse requests are unauthenticated",
			"envVar", "DOCUMENT_PARSE_API_KEY")
	}

	loader := document.NewLoader(
		document.NewDownloader(log),
		document.NewUpstageParser(cfg.DocumentParseURL, cfg.DocumentParseAPIKey, log),
		log,
	)

	return &app{
		cfg:      cfg,
		limiter:  limiter,
		pipeline: p,
		loader:   loader,
		log:      log,
	}, nil
}

func (a *app) Close() {
	a.limiter.Stop()
}

func (a *app) openDatabase(ctx context.Context) (*database.Database, error) {
	db, err := database.New(ctx, a.cfg.DBPath, a.log)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", a.cfg.DBPath, err)
	}
	a.log.InfoContext(ctx, "DB is initialized",
		"dbPath", a.cfg.DBPath)

	return db, nil
}

func (a *app) closeDatabase(ctx context.Context, db *database.Database) {
	if err := db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

func (a *app) assemblyClient() *assembly.Client {
	return assembly.NewClient(assembly.Config{
		BaseURL: a.cfg.AssemblyBaseURL,
		APIKey:  a.cfg.AssemblyAPIKey,
		Age:     a.cfg.AssemblyAge,
	}, a.log)
}

// publisher returns nil when Telegram is not configured or cannot be set up.
func (a *app) publisher(ctx context.Context) updater.MeetingPublisher {
	if !a.cfg.TelegramEnabled() {
		a.log.InfoContext(ctx, "Telegram is not configured so meetings are not published")

		return nil
	}

	tg, err := notifier.NewTelegram(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.limiter, a.log)
	if err != nil {
		a.log.ErrorContext(ctx, "Failed to create Telegram notifier so meetings are not published",
			"error", err,
			"chatID", a.cfg.TelegramChatID)

		return nil
	}

	return tg
}

func (a *app) billsUpdater(source *assembly.Client, db *database.Database) *updater.Bills {
	return updater.NewBills(source, db, a.pipeline, updater.BillsConfig{
		Delay: updater.DefaultBillDelay,
	}, a.log)
}
