package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
	"github.com/jwebster45206/branch-engine/pkg/textfilter"
)

// MockStorage is an in-memory Storage for tests. Snapshots are kept encoded
// so loads go through the same codec as the real backends.
type MockStorage struct {
	mu         sync.RWMutex
	gamestates map[uuid.UUID][]byte
	stories    map[string]*story.Graph
	pingError  error
	saveError  error
	saves      int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		gamestates: make(map[uuid.UUID][]byte),
		stories:    make(map[string]*story.Graph),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail every save with the given error
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveGameState encodes and stores gs unless the game has not started.
func (m *MockStorage) SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error {
	if gs == nil {
		return errors.New("gamestate cannot be nil")
	}
	if !gs.GameStarted {
		return nil
	}
	data, err := state.Encode(gs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.gamestates[id] = data
	m.saves++
	return nil
}

// LoadGameState decodes the stored snapshot.
func (m *MockStorage) LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	m.mu.RLock()
	data, exists := m.gamestates[id]
	m.mu.RUnlock()
	if !exists {
		return nil, nil
	}
	gs, err := state.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gamestate %s: %w", id, err)
	}
	return gs, nil
}

// DeleteGameState mocks deleting a gamestate
func (m *MockStorage) DeleteGameState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gamestates, id)
	return nil
}

// PutRaw stores raw bytes as a snapshot (for testing corrupt records)
func (m *MockStorage) PutRaw(id uuid.UUID, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gamestates[id] = append([]byte(nil), data...)
}

// Raw returns the stored bytes for id
func (m *MockStorage) Raw(id uuid.UUID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.gamestates[id]
	return data, ok
}

// Saves returns how many successful saves have been made
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// ListStories mocks listing stories
func (m *MockStorage) ListStories(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.stories))
	for id := range m.stories {
		result[id] = textfilter.Title(id)
	}
	return result, nil
}

// GetStory mocks getting a story by id
func (m *MockStorage) GetStory(ctx context.Context, id string) (*story.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, exists := m.stories[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStoryNotFound, id)
	}
	return g, nil
}

// AddStory adds a story to the mock storage (for testing)
func (m *MockStorage) AddStory(id string, g *story.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[id] = g
}
