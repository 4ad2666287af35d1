package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"retouch/internal/adapter/repo"
	"retouch/internal/domain"
	"retouch/internal/http/handlers"
	"retouch/internal/http/httpapi"
	"retouch/internal/imagegen"
	"retouch/internal/infra"
	"retouch/internal/infra/geoip"
	"retouch/internal/middleware"
	"retouch/internal/providers/genai"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Record store: Postgres when configured, in-memory otherwise.
	var store domain.GenerationRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		store = repo.NewGenerationRepository(pool)
		logger.Info().Msg("using postgres generation store")
	} else {
		store = repo.NewMemoryRepository()
		logger.Warn().Msg("DATABASE_URL not set, using in-memory generation store")
	}

	promptCfg, err := imagegen.LoadPromptConfig(cfg.PromptConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load prompt config")
	}
	// Env overrides win over the YAML file for the model chain.
	if len(cfg.EditModels) > 0 {
		promptCfg.EditModels = cfg.EditModels
	}
	if cfg.AnalysisModel != "" {
		promptCfg.AnalysisModel = cfg.AnalysisModel
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	dispatcher := imagegen.NewDispatcher(client, promptCfg, logger)
	logger.Info().Strs("models", dispatcher.Models()).Msg("edit model chain configured")

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip resolver disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	limits := imagegen.Limits{MaxBytes: cfg.MaxUploadBytes, MaxPromptChars: cfg.MaxPromptChars}
	app := handlers.NewApp(store, dispatcher, limits, logger)
	router := httpapi.NewRouter(app, cfg, logger, lookup)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
