package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/config"
	"epistolary-lite/internal/fetch"
	"epistolary-lite/internal/handler"
	"epistolary-lite/internal/logger"
	"epistolary-lite/internal/sentry"
	"epistolary-lite/internal/server"
	"epistolary-lite/internal/store"
)

func main() {
	// Load the dotenv file if it exists
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}

	logger.Configure(cfg.LogLevel, cfg.ConsoleLog)
	gin.SetMode(cfg.GinMode)

	flush, err := sentry.Init(cfg.Sentry)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize sentry")
	}
	defer flush()

	st := store.NewWithOptions(store.Options{StateFile: cfg.StateFile})

	tokenCfg := auth.DefaultTokenConfig(cfg.MasterSecret)
	tokenCfg.Expiry = cfg.TokenExpiry

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		Config:      cfg,
		Fetcher:     fetch.New(10 * time.Second),
		Updates:     handler.NewPublisher(),
		Started:     time.Now(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, router); err != nil {
		sentry.Report(err, "server stopped unexpectedly")
		log.Error().Err(err).Msg("server stopped unexpectedly")
		flush()
		os.Exit(1)
	}
}
