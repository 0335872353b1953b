package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/analysis"
	"github.com/visiblelab/visibility-bot/internal/archive"
	"github.com/visiblelab/visibility-bot/internal/classify"
	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/inventory"
	"github.com/visiblelab/visibility-bot/internal/notifications"
	"github.com/visiblelab/visibility-bot/internal/pipeline"
	"github.com/visiblelab/visibility-bot/internal/pool"
	"github.com/visiblelab/visibility-bot/internal/providers"
	"github.com/visiblelab/visibility-bot/internal/scheduler"
	"github.com/visiblelab/visibility-bot/internal/scheduling"
	"github.com/visiblelab/visibility-bot/internal/server"
	"github.com/visiblelab/visibility-bot/internal/store"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Brand Visibility Bot")

	// Open the database
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}

	// Raw-response archival is optional
	var archiver archive.Archiver = archive.NoopArchive{}
	if cfg.StorageAccount != "" {
		azureArchive, err := archive.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive storage: %v", err)
		}
		archiver = azureArchive
	}

	// URL classification falls back to the host heuristic when no
	// external service is configured
	var classifier classify.Classifier = classify.HostClassifier{}
	if cfg.ClassifierURL != "" {
		classifier = classify.NewHTTPClassifier(cfg.ClassifierURL)
	}

	notifier := notifications.NewService(cfg)
	inventoryService := inventory.NewService(db)
	accountPool := pool.NewService(db, db, cfg)
	schedulingService := scheduling.NewService(db, inventoryService, accountPool, notifier, cfg)

	chatGPT := providers.NewChatGPTProvider(cfg.OpenAIEndpoint, cfg.OpenAIModel, cfg.OpenAIAPIKey)
	perplexity := providers.NewPerplexityProvider(cfg.PerplexityEndpoint, cfg.PerplexityModel, cfg.PerplexityAPIKey)

	orchestrator := pipeline.NewOrchestrator(
		db, db, db,
		chatGPT, perplexity,
		classifier,
		analysis.NewKeywordScorer(),
		archiver,
		notifier,
		cfg,
	)

	// Start the cron jobs
	schedulerService := scheduler.NewService(schedulingService, orchestrator, cfg.Location())
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up the HTTP API
	apiServer := server.NewServer(schedulingService, orchestrator, accountPool, db, db, archiver, cfg.Location())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
