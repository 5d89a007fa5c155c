package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/api"
	"github.com/mediguard-server/internal/config"
	"github.com/mediguard-server/internal/domain"
	"github.com/mediguard-server/internal/prefs"
	"github.com/mediguard-server/internal/service"
	"github.com/mediguard-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting MediGuard server")

	// Preference store
	prefStore, err := prefs.New(cfg.Prefs)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open preference store")
	}
	defer prefStore.Close()

	// External clients
	labelClient := external.NewDrugLabelClient(cfg.DrugLabel)
	cloudClient := external.NewCloudModelClient(cfg.CloudModel)
	resilient := external.NewResilientClient(labelClient, cloudClient, logger)

	// On-device model session over the loopback runtime. Unreachable is
	// fine, the cascade falls through to the other sources.
	localModel := external.NewLocalModelClient(cfg.LocalModel)
	hub := api.NewStatusHub(logger)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := localModel.Probe(probeCtx); err != nil {
		logger.WithError(err).Warn("Local model runtime not reachable, on-device reasoning disabled")
	} else {
		logger.WithField("model", cfg.LocalModel.Model).Info("Local model session ready")
	}
	probeCancel()

	analyzer := service.NewAnalyzerService(resilient, hub, cfg.Analysis.AdapterTimeout, logger)
	normalizer := service.NewInputNormalizer(localModel, logger)
	sessions := service.NewSessionManager(localModel, cfg.Analysis.BaseLanguage, logger)

	server := api.NewServer(configManager, api.Deps{
		Analyzer:   analyzer,
		Normalizer: normalizer,
		Sessions:   sessions,
		Prefs:      prefStore,
		Cloud:      resilient,
		LocalModel: localModel,
		Hub:        hub,
		Logger:     logger,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}
