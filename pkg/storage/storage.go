package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// ErrStoryNotFound is returned by GetStory for an unknown story id.
var ErrStoryNotFound = errors.New("story not found")

// Storage defines a unified interface for all storage operations.
// Game state snapshots live in a backend (Redis or SQLite); stories are
// loaded from the filesystem with the bundled content as fallback.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// GameState operations
	// SaveGameState is a no-op for a state that has not started.
	// LoadGameState returns (nil, nil) when nothing is stored and an error
	// wrapping state.ErrCorrupt when the stored record cannot be decoded.
	SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	DeleteGameState(ctx context.Context, id uuid.UUID) error

	// Story operations
	// ListStories maps story id to display title.
	ListStories(ctx context.Context) (map[string]string, error)
	GetStory(ctx context.Context, id string) (*story.Graph, error)
}
