package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/branch-engine/internal/config"
	"github.com/jwebster45206/branch-engine/internal/events"
	"github.com/jwebster45206/branch-engine/internal/handlers"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/internal/session"
	internalstorage "github.com/jwebster45206/branch-engine/internal/storage"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Branch Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"story", cfg.StoryID)

	var (
		store      storage.Storage
		publisher  events.Publisher = events.NopPublisher{}
		subscriber events.Subscriber
	)

	switch cfg.StorageBackend {
	case config.BackendRedis:
		client, err := internalstorage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		redisStorage := internalstorage.NewRedisStorage(client, cfg.DataDir, cfg.GameStateTTL, log)

		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = redisStorage.WaitForConnection(waitCtx)
		waitCancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		broadcaster := events.NewBroadcaster(redisStorage.Client(), log)
		store, publisher, subscriber = redisStorage, broadcaster, broadcaster
	default:
		sqliteStorage, err := internalstorage.OpenSQLite(cfg.SQLitePath, cfg.DataDir, log)
		if err != nil {
			log.Error("Failed to open SQLite storage", "error", err)
			os.Exit(1)
		}
		store = sqliteStorage
		log.Info("Event stream disabled without the redis backend")
	}
	log.Info("Storage connection established successfully")

	g, err := store.GetStory(context.Background(), cfg.StoryID)
	if err != nil {
		log.Error("Failed to load story", "story", cfg.StoryID, "error", err)
		os.Exit(1)
	}
	log.Info("Story loaded", "story", g.Name(), "nodes", g.Len())

	manager := session.NewManager(g, store, publisher, log)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.Deps{
			Storage:    store,
			Manager:    manager,
			Subscriber: subscriber,
			Logger:     log,
		}),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE endpoint holds connections open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
