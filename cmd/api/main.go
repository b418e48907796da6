package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/admission"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/chat"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/core"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/httpapi"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/knowledge"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/llm"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
	pkgredis "github.com/EVAVO-STUDIO/client-chat-platform/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`

	// AdminToken is the single shared bearer token guarding /admin.
	AdminToken string `envconfig:"ADMIN_TOKEN" required:"true"`

	Redis pkgredis.Config
	LLM   llm.GeminiConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise redis client")
	}
	store := kv.NewRedisStore(rdb)
	defer store.Close()

	gemini, err := llm.NewGemini(ctx, cfg.LLM)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise gemini client")
	}

	registry := bot.NewRegistry(store)
	gate := admission.NewGate(store)
	engine := knowledge.NewEngine(store, gemini)
	service := chat.NewService(registry, gate, engine, gemini, chat.NewDispatcher())

	handler := httpapi.NewHandler(service, registry, cfg.AdminToken)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
