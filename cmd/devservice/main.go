package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"scribeflow/internal/http/handlers"
	httpapi "scribeflow/internal/http/httpapi"
	"scribeflow/internal/infra"
	"scribeflow/internal/jobengine"
	"scribeflow/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}

	clock := clockwork.NewRealClock()
	engine, err := jobengine.New(jobengine.Options{
		Files:         files,
		Clock:         clock,
		Logger:        &logger,
		StageDuration: cfg.StageDuration,
		FreeCredits:   cfg.FreeCredits,
		DevOTPCode:    cfg.DevOTPCode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build job engine")
	}

	app := handlers.NewApp(engine, files, logger, cfg.JWTSecret, cfg.TokenTTL, clock)
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("storage", files.BasePath()).Msg("dev service listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
