package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/config"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/internal/session"
	internalstorage "github.com/jwebster45206/branch-engine/internal/storage"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

const (
	gameIDFile = "console.id"
	logFile    = "console.log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	logOut, err := os.OpenFile(filepath.Join(cfg.DataDir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("open log file: %v", err)
	}
	defer func() {
		_ = logOut.Close() // Ignore error in defer
	}()
	log := logger.SetupWriter(cfg, logOut)

	store, err := openStorage(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open storage: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	g, err := store.GetStory(context.Background(), cfg.StoryID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load story %q: %v\n", cfg.StoryID, err)
		os.Exit(1)
	}

	gameID, err := loadOrCreateGameID(filepath.Join(cfg.DataDir, gameIDFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load game id: %v\n", err)
		os.Exit(1)
	}
	log.Info("Console starting", "story", g.Name(), "game_id", gameID.String(), "storage_backend", cfg.StorageBackend)

	manager := session.NewManager(g, store, nil, log)

	p := tea.NewProgram(NewConsoleUI(cfg, manager, gameID, log), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func openStorage(cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.StorageBackend != config.BackendRedis {
		return internalstorage.OpenSQLite(cfg.SQLitePath, cfg.DataDir, log)
	}

	client, err := internalstorage.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	redisStorage := internalstorage.NewRedisStorage(client, cfg.DataDir, cfg.GameStateTTL, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := redisStorage.WaitForConnection(ctx); err != nil {
		_ = redisStorage.Close()
		return nil, err
	}
	return redisStorage, nil
}

// loadOrCreateGameID returns the id stored at path, writing a fresh one when
// the file is missing or unreadable. The console always plays the same game,
// so a restart resumes where the player left off.
func loadOrCreateGameID(path string) (uuid.UUID, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return id, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return uuid.Nil, fmt.Errorf("read %s: %w", path, err)
	}

	id := uuid.New()
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return uuid.Nil, fmt.Errorf("write %s: %w", path, err)
	}
	return id, nil
}
