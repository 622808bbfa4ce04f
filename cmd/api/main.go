package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"photoenhance/internal/adapter/repo"
	"photoenhance/internal/credits"
	"photoenhance/internal/enhance"
	"photoenhance/internal/http/handlers"
	httpapi "photoenhance/internal/http/httpapi"
	"photoenhance/internal/infra"
	"photoenhance/internal/infra/credentials"
	"photoenhance/internal/providers/genai"
	"photoenhance/internal/storage"
	"photoenhance/internal/validate"
)

func main() {
	// Load .env when present
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, infra.ComponentLogger(logger, "sql"))
	photos := repo.NewPhotoRepository(runner)
	users := repo.NewUserRepository(runner)

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("storage unavailable")
	}

	apiKey, keySource, err := credentials.NewStore(runner).ResolveGeminiAPIKey(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve gemini api key")
	}
	logger.Info().Str("source", keySource).Msg("gemini api key resolved")
	aiLogger := infra.ComponentLogger(logger, "genai")
	ai, err := genai.NewClient(ctx, genai.Options{
		APIKey:  apiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &aiLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init gemini client")
	}

	validatorOpts := validate.Options{
		Timeout: cfg.ValidateTimeout,
		Backend: store,
		Logger:  infra.ComponentLogger(logger, "validate"),
	}
	var files http.Handler
	if fs, ok := store.(*storage.FileStore); ok {
		validatorOpts.Resolver = fs
		files = http.FileServer(http.Dir(fs.BasePath()))
	}

	orchestrator := enhance.NewOrchestrator(enhance.Deps{
		Photos:    photos,
		Storage:   store,
		AI:        ai,
		Validator: validate.New(validatorOpts),
		Ledger:    credits.NewLedger(runner, users, infra.ComponentLogger(logger, "credits")),
	}, enhance.Options{
		Timeout:        cfg.EnhanceTimeout,
		AttemptTimeout: cfg.AttemptTimeout,
		Prompt:         cfg.EnhancePrompt,
		Logger:         infra.ComponentLogger(logger, "enhance"),
	})

	app := &handlers.App{
		Enhancer: orchestrator,
		Photos:   photos,
		Users:    users,
		DB:       dbpool,
		Logger:   infra.ComponentLogger(logger, "http"),
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:        cfg.JWTSecret,
		InternalAPIToken: cfg.InternalAPIToken,
		RateLimitPerMin:  cfg.RateLimitPerMin,
		Logger:           logger,
		Files:            files,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().
			Str("storage", store.Backend()).
			Str("model", ai.Model()).
			Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight enhancements get the full write timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
