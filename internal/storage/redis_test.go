package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/pkg/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client, err := NewRedisClient("redis://" + mr.Addr())
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis client: %v", err)
	}

	rs := NewRedisStorage(client, t.TempDir(), time.Hour, testLogger())
	t.Cleanup(func() {
		_ = rs.Close()
		mr.Close()
	})
	return rs, mr
}

func startedState() *state.GameState {
	gs := state.New()
	gs.PlayerName = "Maria"
	gs.GameStarted = true
	gs.CurrentScene = "altar"
	gs.HP = 70
	gs.Inventory = gs.Inventory.With("Agimat")
	return gs
}

func TestRedisStorage_SaveAndLoad(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()
	id := uuid.New()

	gs := startedState()
	if err := rs.SaveGameState(ctx, id, gs); err != nil {
		t.Fatalf("Failed to save gamestate: %v", err)
	}

	if !mr.Exists("gamestate:" + id.String()) {
		t.Fatal("Expected gamestate key in redis")
	}
	if ttl := mr.TTL("gamestate:" + id.String()); ttl != time.Hour {
		t.Errorf("Expected TTL of 1h, got %v", ttl)
	}

	loaded, err := rs.LoadGameState(ctx, id)
	if err != nil {
		t.Fatalf("Failed to load gamestate: %v", err)
	}
	if !loaded.Equal(gs) {
		t.Errorf("Loaded state differs:\n got %+v\nwant %+v", loaded, gs)
	}
}

func TestRedisStorage_LoadMissing(t *testing.T) {
	rs, _ := setupTestRedis(t)

	loaded, err := rs.LoadGameState(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Expected no error for missing gamestate, got %v", err)
	}
	if loaded != nil {
		t.Error("Expected nil for missing gamestate")
	}
}

func TestRedisStorage_SkipsPreGame(t *testing.T) {
	rs, mr := setupTestRedis(t)
	id := uuid.New()

	if err := rs.SaveGameState(context.Background(), id, state.New()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if mr.Exists("gamestate:" + id.String()) {
		t.Error("Pre-game state should not be persisted")
	}
}

func TestRedisStorage_Corrupt(t *testing.T) {
	rs, mr := setupTestRedis(t)
	id := uuid.New()

	if err := mr.Set("gamestate:"+id.String(), `{"format":"branch-engine/gamestate","version":1,"state":{"hp":"lots"}}`); err != nil {
		t.Fatalf("Failed to seed redis: %v", err)
	}

	_, err := rs.LoadGameState(context.Background(), id)
	if !errors.Is(err, state.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}

func TestRedisStorage_Delete(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()
	id := uuid.New()

	if err := rs.SaveGameState(ctx, id, startedState()); err != nil {
		t.Fatalf("Failed to save gamestate: %v", err)
	}
	if err := rs.DeleteGameState(ctx, id); err != nil {
		t.Fatalf("Failed to delete gamestate: %v", err)
	}
	if mr.Exists("gamestate:" + id.String()) {
		t.Error("Gamestate should be gone after delete")
	}
}

func TestRedisStorage_PingAfterShutdown(t *testing.T) {
	rs, mr := setupTestRedis(t)

	if err := rs.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	mr.Close()
	if err := rs.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail once redis is gone")
	}
}

func TestNewRedisClient(t *testing.T) {
	if _, err := NewRedisClient("localhost:6379"); err != nil {
		t.Errorf("bare address should be accepted: %v", err)
	}
	if _, err := NewRedisClient("redis://localhost:6379/0"); err != nil {
		t.Errorf("redis URL should be accepted: %v", err)
	}
	if _, err := NewRedisClient("http://localhost"); err == nil {
		t.Error("Expected error for non-redis scheme")
	}
}
