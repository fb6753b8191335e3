package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VisionFlow/internal/config"
	"VisionFlow/internal/data"
	"VisionFlow/internal/data/storage"
	"VisionFlow/internal/remote"
	"VisionFlow/pkg/plugin"
	"VisionFlow/pkg/plugin/histogram"
	"VisionFlow/pkg/plugin/shotdensity"

	"go.uber.org/zap"
)

// pluginserver hosts analysis plugins behind the remote invocation contract.
// It shares the orchestrator's backing store and resolves entity ids through
// its own data manager; only references cross the wire.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	configLoader := config.NewConfigLoader(logger)
	cfg, err := configLoader.Load("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	storageImpl, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to init storage", zap.Error(err))
	}
	dataMgr := data.NewManager(storageImpl, cfg.Storage.Bucket, logger)

	registry := plugin.NewRegistry()
	plugins := []plugin.Plugin{
		shotdensity.New(dataMgr, logger),
		histogram.New(dataMgr, logger),
	}
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			logger.Fatal("Failed to register plugin", zap.String("plugin", p.Name()), zap.Error(err))
		}
	}

	server := remote.NewServer(registry, logger)

	addr := cfg.Remote.ListenAddr
	if addr == "" {
		addr = ":8090"
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Fatal("Serving host failed", zap.Error(err))
	case <-sigChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
