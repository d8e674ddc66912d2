package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/brgyhealth/records-portal/internal/portal"
	"github.com/brgyhealth/records-portal/pkg/config"
	"github.com/brgyhealth/records-portal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize portal service
	service, err := portal.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize portal service: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting records portal on %s", addr)
		if err := service.Start(addr); err != nil {
			logger.WithError(err).Info("Portal HTTP server stopped")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down records portal...")
	if err := service.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Records portal stopped")
}
