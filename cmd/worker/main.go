package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"photoenhance/internal/adapter/repo"
	"photoenhance/internal/infra"
	"photoenhance/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.ComponentLogger(infra.NewLogger(cfg.AppEnv), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	// The API may hold a request for its full write timeout.
	trigger, err := sweeper.NewHTTPTrigger(cfg.EnhanceAPIURL, cfg.InternalAPIToken, cfg.HTTPWriteTimeout+cfg.ValidateTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: trigger misconfigured")
	}

	sw := sweeper.New(repo.NewPhotoRepository(runner), trigger, sweeper.Options{
		MaxAttempts:            cfg.RetryMaxAttempts,
		BaseDelay:              cfg.RetryBaseDelay,
		StaleProcessingMinutes: cfg.StaleProcessingMinutes,
		Logger:                 logger,
	})

	logger.Info().
		Str("api", cfg.EnhanceAPIURL).
		Dur("interval", cfg.SweepInterval).
		Int("max_attempts", cfg.RetryMaxAttempts).
		Msg("worker started")
	sw.Run(ctx, cfg.SweepInterval)
	logger.Info().Msg("worker stopped")
}
