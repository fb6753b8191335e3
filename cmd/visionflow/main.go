package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"VisionFlow/internal/cache"
	"VisionFlow/internal/config"
	"VisionFlow/internal/data"
	"VisionFlow/internal/data/storage"
	"VisionFlow/internal/remote"
	"VisionFlow/internal/run"
	"VisionFlow/pkg/plugin"
	"VisionFlow/pkg/plugin/histogram"
	"VisionFlow/pkg/plugin/shotdensity"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

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

	ctx := context.Background()

	db, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	storageImpl, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to init storage", zap.Error(err))
	}
	dataMgr := data.NewManager(storageImpl, cfg.Storage.Bucket, logger)

	cacheStore, err := cache.NewStore(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to init cache store", zap.Error(err))
	}
	defer cacheStore.Close()
	resultCache := cache.NewResultCache(cacheStore, logger)

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

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	var router *remote.Router
	if cfg.Remote.Enabled {
		router = remote.NewRouter(cfg.Remote, registry, logger)
	}

	store := run.NewPGStore(db)
	submitter := run.NewTemporalSubmitter(temporalClient, cfg.Temporal.TaskQueue, logger)

	var remoteInvoker run.RemoteInvoker
	if router != nil {
		remoteInvoker = router
	}
	manager := run.NewManager(registry, store, dataMgr, resultCache, submitter, remoteInvoker, logger)
	for _, pc := range cfg.Plugins {
		if !pc.Enabled {
			continue
		}
		if pc.Remote {
			manager.SetRemotePlugin(pc.Name)
		}
		if pc.Config != nil {
			manager.SetPluginConfig(pc.Name, pc.Config)
		}
	}

	reconciler := run.NewReconciler(store, run.NewTemporalInspector(temporalClient, cfg.Temporal.Namespace, logger), logger)
	if err := reconciler.Reconcile(ctx); err != nil {
		logger.Warn("Startup reconciliation failed", zap.Error(err))
	}

	activities := run.NewActivities(manager, store, logger)
	worker := run.NewWorker(temporalClient, cfg.Temporal.TaskQueue, activities, logger)
	if err := worker.Start(); err != nil {
		logger.Fatal("Failed to start run worker", zap.Error(err))
	}
	defer worker.Stop()

	logger.Info("VisionFlow orchestrator started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.Int("plugins", len(registry.List())),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
}
