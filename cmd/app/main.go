// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maizey-chat/internal/app"
	"maizey-chat/internal/config"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/infra/web"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted status)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logging ----
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Components ----
	a, err := app.Build(ctx, cfg, logger, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	a.Start(ctx)

	// ---- HTTP ----
	sessions := web.NewSessionManager(cfg.Session.Secret, cfg.Session.CookieName, cfg.Session.SecureCookie, cfg.Session.TTL)
	states := web.NewStateRegistry(cfg.Session.TTL)
	go states.Run(ctx, time.Hour)

	var limiter web.SendLimiter
	if a.RateLimiter != nil {
		limiter = a.RateLimiter
	}
	srv := web.NewServer(a.Facade, sessions, states, limiter, a.Translator, web.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		SendRateLimit:  cfg.Server.SendRateLimit,
		Tracer:         a.Tracer,
	}, logger)

	logger.Info().
		Str("version", version).
		Str("provider", a.Assistant.Name()).
		Str("backend", a.Backend).
		Int("port", cfg.Server.Port).
		Msg("maizey chat starting")

	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}

	// ---- Graceful shutdown ----
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown")
	}
}
