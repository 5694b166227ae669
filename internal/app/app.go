// Package app assembles the chat service from configuration. The server,
// the terminal client and the seeder share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"maizey-chat/internal/application"
	"maizey-chat/internal/config"
	"maizey-chat/internal/domain/format"
	"maizey-chat/internal/domain/ports/adapter"
	"maizey-chat/internal/domain/ports/repository"
	aiAdapters "maizey-chat/internal/infra/adapters/ai"
	"maizey-chat/internal/infra/adapters/tokenizer"
	pg "maizey-chat/internal/infra/db/postgres"
	"maizey-chat/internal/infra/db/sqlite"
	"maizey-chat/internal/infra/i18n"
	"maizey-chat/internal/infra/memory"
	"maizey-chat/internal/infra/metrics"
	red "maizey-chat/internal/infra/redis"
	"maizey-chat/internal/infra/scheduler"
	"maizey-chat/internal/infra/security"
	"maizey-chat/internal/infra/tracing"
	"maizey-chat/internal/infra/worker"
	"maizey-chat/internal/usecase"
)

type App struct {
	Config     *config.Config
	Log        *zerolog.Logger
	Translator *i18n.Translator
	Tracer     trace.Tracer
	Facade     *application.ChatFacade
	History    usecase.HistoryUseCase
	Assistant  adapter.AssistantAdapter

	// RateLimiter is set only with the redis backend.
	RateLimiter *red.RateLimiter
	// Backend is the store actually in use; "none" after a failed connect.
	Backend string

	pool    *worker.Pool
	purge   *scheduler.Scheduler
	pgPool  *pgxpool.Pool
	closers []func(context.Context) error
}

// Build wires every component. A store that cannot be reached disables
// persistence instead of failing; a bad assistant configuration fails.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, version string) (*App, error) {
	a := &App{Config: cfg, Log: logger}

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.UI.Language)
	if err != nil {
		logger.Warn().Err(err).Str("language", cfg.UI.Language).Msg("falling back to english UI strings")
		tr = i18n.MustDefault()
	}
	a.Translator = tr

	tracer, shutdown, err := tracing.Init(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.Tracer = tracer
	a.closers = append(a.closers, shutdown)

	var enc *security.EncryptionService
	if cfg.Store.EncryptionKey != "" {
		enc, err = security.NewEncryptionService(cfg.Store.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption: %w", err)
		}
	}

	kv := a.openStore(ctx)
	a.History = usecase.NewHistoryUseCase(kv, a.Backend, cfg.Store.TTL, enc, logger)
	if p, ok := kv.(repository.Purger); ok {
		a.purge = scheduler.NewScheduler(cfg.Store.PurgeInterval, p, logger)
	}

	assistant, err := NewAssistant(ctx, cfg.Assistant, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("assistant: %w", err)
	}
	assistant = aiAdapters.NewLimitedAI(assistant, cfg.Assistant.ConcurrentLimit)
	a.Assistant = aiAdapters.NewInstrumentedAI(assistant, tracer)

	a.pool = worker.NewPool(cfg.Store.SaveWorkers, logger)

	tokens := tokenizer.New(cfg.Assistant.Model)
	tokens.Warm()

	chat := usecase.NewChatUseCase(
		a.Assistant,
		a.History,
		a.pool,
		tr,
		tokens,
		chatOptions(cfg),
		logger,
	)
	a.Facade = application.NewChatFacade(
		chat,
		a.History,
		format.New(cfg.UI.DefaultLanguage),
		cfg.UI.Examples,
		cfg.Store.RecentLimit,
		cfg.Store.SidebarLimit,
	)

	metrics.MustRegister()
	metrics.SetBuildInfo(version, cfg.Assistant.Provider, a.Backend)
	return a, nil
}

func chatOptions(cfg *config.Config) usecase.ChatOptions {
	opts := usecase.ChatOptions{Timeout: cfg.Assistant.Timeout, Dev: cfg.Runtime.Dev}
	switch cfg.Assistant.Provider {
	case "maizey":
		opts.BaseURL = cfg.Assistant.BaseURL
		opts.ProjectPK = cfg.Assistant.ProjectPK
		opts.TokenPresent = cfg.Assistant.AccessToken != ""
	case "openai":
		opts.BaseURL = cfg.Assistant.OpenAIBaseURL
		opts.TokenPresent = cfg.Assistant.OpenAIKey != ""
	case "gemini":
		opts.BaseURL = cfg.Assistant.GeminiURL
		opts.TokenPresent = cfg.Assistant.GeminiKey != ""
	}
	return opts
}

// NewAssistant builds the provider named by cfg.Provider.
func NewAssistant(ctx context.Context, cfg config.AssistantConfig, logger *zerolog.Logger) (adapter.AssistantAdapter, error) {
	switch cfg.Provider {
	case "maizey":
		logger.Info().Str("base", cfg.BaseURL).Msg("assistant: maizey")
		return aiAdapters.NewMaizeyAdapter(cfg.AccessToken, cfg.ProjectPK, cfg.BaseURL, cfg.Timeout)
	case "openai":
		logger.Info().Str("model", cfg.Model).Msg("assistant: openai")
		return aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.Model, cfg.OpenAIBaseURL, cfg.MaxOutTokens, cfg.Timeout)
	case "gemini":
		logger.Info().Str("model", cfg.Model).Msg("assistant: gemini")
		return aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.Model, cfg.MaxOutTokens)
	case "noop":
		logger.Warn().Msg("assistant: noop, replies are generated locally")
		return aiAdapters.NewNoopAIAdapter(logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (a *App) openStore(ctx context.Context) repository.KVStore {
	cfg := a.Config
	kv, err := a.connectStore(ctx, cfg.Store.Backend)
	if err != nil {
		a.Log.Warn().Err(err).Str("backend", cfg.Store.Backend).Msg("chat history store unavailable; persistence disabled")
		a.Backend = "none"
		return nil
	}
	if kv == nil {
		a.Backend = "none"
		a.Log.Info().Msg("chat history persistence disabled")
		return nil
	}
	a.Backend = cfg.Store.Backend
	a.Log.Info().Str("backend", a.Backend).Dur("ttl", cfg.Store.TTL).Msg("chat history store ready")
	return kv
}

func (a *App) connectStore(ctx context.Context, backend string) (repository.KVStore, error) {
	cfg := a.Config
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch backend {
	case "none":
		return nil, nil
	case "memory":
		return memory.NewKVStore(), nil
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, errors.New("redis.url (REDIS_URL) not set")
		}
		client, err := red.NewClient(connectCtx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.RateLimiter = red.NewRateLimiter(client)
		return red.NewKVStore(client), nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url (DATABASE_URL) not set")
		}
		pool, err := pg.NewPgxPool(connectCtx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		kv := pg.NewKVStore(pool, a.Log)
		if err := kv.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, err
		}
		a.pgPool = pool
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		return kv, nil
	case "sqlite":
		kv, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := kv.Ping(connectCtx); err != nil {
			_ = kv.Close()
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return kv.Close() })
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// Start launches the save workers and background maintenance. Workers run on
// their own context so Close can drain queued saves after ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.pool.Start(context.Background())
	if a.purge != nil {
		a.purge.Start(ctx)
	}
	if a.pgPool != nil {
		go pg.ReportPoolStats(ctx, a.pgPool, 30*time.Second)
	}
}

// Close drains pending saves and releases connections in reverse order.
func (a *App) Close(ctx context.Context) error {
	if a.purge != nil {
		a.purge.Stop()
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
