package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/irfpannn/ikhlas/internal/artifact"
	"github.com/irfpannn/ikhlas/internal/config"
	"github.com/irfpannn/ikhlas/internal/fusion"
	"github.com/irfpannn/ikhlas/internal/handler"
	"github.com/irfpannn/ikhlas/internal/registry"
	"github.com/irfpannn/ikhlas/internal/repository"
	"github.com/irfpannn/ikhlas/internal/service"
	"github.com/irfpannn/ikhlas/internal/trainer"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Asnaf Eligibility Service...")

	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Artifact store
	store, err := artifact.NewStore(cfg.Data.Dir)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	// Feedback repository
	repo, err := repository.NewFeedbackRepository(cfg.Data.FeedbackDB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize feedback repository", zap.Error(err))
	}
	defer repo.Close()

	// Registry source: remote service when configured, else local export file
	var registrySource registry.Source
	switch {
	case cfg.Registry.URL != "":
		registrySource = registry.NewHTTPSource(cfg.Registry.URL, logger)
		logger.Info("Using remote asnaf registry", zap.String("url", cfg.Registry.URL))
	case cfg.Registry.Path != "":
		registrySource = registry.NewFileSource(cfg.Registry.Path, logger)
		logger.Info("Using local asnaf registry export", zap.String("path", cfg.Registry.Path))
	default:
		logger.Info("No asnaf registry configured")
	}

	// Core services
	fusionSvc := fusion.NewService(repo, registrySource, store, logger)
	modelTrainer := trainer.New(store, logger)
	predictor := service.NewPredictor(store, logger)
	orchestrator := service.NewOrchestrator(fusionSvc, modelTrainer, predictor, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(predictor, orchestrator, repo, store, cfg.Training.DefaultSamples, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Application stopped.")
}
