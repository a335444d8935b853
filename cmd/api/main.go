package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/config"
	"alfredoptarigan/cv-profiler/internal/handlers"
	"alfredoptarigan/cv-profiler/internal/logger"
	"alfredoptarigan/cv-profiler/internal/repositories"
	"alfredoptarigan/cv-profiler/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}
	log.Info().Msg("✅ Config loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional run log
	var runRepo repositories.BatchRunRepository
	if cfg.Database.Enabled {
		db, err := config.InitDatabase(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to initialize database")
		}
		runRepo = repositories.NewBatchRunRepository(db)
		log.Info().Msg("✅ Run log enabled")
	}

	policy, err := services.LoadLanguagePolicy(cfg.Template.PolicyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load language policy")
	}

	bulletStyle, err := services.ParseBulletStyle(cfg.Template.BulletStyle)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid bullet style")
	}

	renderer, err := services.NewTemplateRenderer(cfg.Template.Path, bulletStyle)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load document template")
	}

	sessions, err := services.NewSessionStore(cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to initialize session store")
	}

	// A missing credential must not stop the server; processing routes report it.
	aiClient, aiErr := services.NewAIClientFromConfig(ctx, cfg.AI)
	if aiErr != nil {
		log.Error().Err(aiErr).Msg("❌ AI client not available, processing requests will be rejected")
	} else {
		log.Info().Str("provider", cfg.AI.Provider).Strs("models", cfg.AI.Models).Msg("✅ AI client initialized")
	}

	orchestrator := services.NewBatchOrchestrator(services.OrchestratorDeps{
		Ingestor:   services.NewDocumentIngestor(services.IngestorOptions{ExtractTimeout: cfg.Storage.ExtractTimeout}),
		Prompts:    services.NewPromptBuilder(policy),
		AI:         aiClient,
		AIErr:      aiErr,
		Normalizer: services.NewResponseNormalizer(),
		Renderer:   renderer,
		Policy:     policy,
		Sessions:   sessions,
		Recorder:   services.NewRunRecorder(runRepo),
	})
	log.Info().Msg("✅ Services initialized successfully")

	app := handlers.NewApp(handlers.AppOptions{
		Orchestrator: orchestrator,
		RunRepo:      runRepo,
		MaxFileSize:  cfg.Storage.MaxFileSize,
		AccessLog:    true,
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("❌ Server forced to shutdown")
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("🚀 Server starting")

	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("❌ Failed to start server")
		os.Exit(1)
	}
}
