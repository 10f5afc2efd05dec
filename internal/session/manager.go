// Package session is the host shell around the transition engine. It loads
// the current state, applies one action, persists the result and publishes
// presentation events. It is the only caller of engine.Apply.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/internal/events"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/storage"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// Manager serializes transitions per game and keeps storage in step with
// the engine.
type Manager struct {
	graph     *story.Graph
	store     storage.Storage
	publisher events.Publisher
	logger    *slog.Logger
	locks     *gameLocks
}

// NewManager creates a manager. A nil publisher drops events.
func NewManager(g *story.Graph, store storage.Storage, publisher events.Publisher, logger *slog.Logger) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		graph:     g,
		store:     store,
		publisher: publisher,
		logger:    logger,
		locks:     newGameLocks(),
	}
}

// Graph returns the story the manager plays.
func (m *Manager) Graph() *story.Graph {
	return m.graph
}

// Dispatch applies a to the stored state of game id and persists the result.
// On an engine error the stored state is untouched and returned with the error.
func (m *Manager) Dispatch(ctx context.Context, id uuid.UUID, a engine.Action) (*state.GameState, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", engine.ErrUnknownAction)
	}

	unlock := m.locks.lock(id)
	defer unlock()

	log := logger.WithGameID(m.logger, id).With("action", a.Kind())

	current, err := m.current(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := engine.Apply(m.graph, current, a)
	if err != nil {
		log.Debug("Transition rejected", "error", err, "scene", current.CurrentScene)
		return res.State, err
	}

	if err := m.persist(ctx, id, res); err != nil {
		logger.WithError(log, err).Error("Failed to persist game state")
		return res.State, err
	}

	log.Debug("Transition applied", "scene", res.State.CurrentScene, "hp", res.State.HP)
	m.publish(ctx, id, current, res.State, a)
	return res.State, nil
}

// Resume restores game id at startup. Nothing stored, a corrupt record and a
// record that never started all yield the pre-game state; a corrupt record
// is deleted. Otherwise the snapshot goes through Load, which clears any
// pending jumpscare.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	log := logger.WithGameID(m.logger, id)

	snapshot, err := m.current(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snapshot.GameStarted {
		return state.New(), nil
	}

	res, err := engine.Apply(m.graph, state.New(), engine.Load{Snapshot: snapshot})
	if err != nil {
		logger.WithError(log, err).Warn("Discarding snapshot that failed to load")
		if derr := m.store.DeleteGameState(ctx, id); derr != nil {
			return nil, fmt.Errorf("failed to discard snapshot: %w", derr)
		}
		return state.New(), nil
	}
	if err := m.persist(ctx, id, res); err != nil {
		return nil, err
	}

	if !m.graph.Has(res.State.CurrentScene) {
		log.Warn("Resumed game points at a missing scene", "scene", res.State.CurrentScene)
	}
	log.Info("Game resumed", "scene", res.State.CurrentScene, "hp", res.State.HP)
	return res.State, nil
}

// View returns the render model of game id without changing it.
func (m *Manager) View(ctx context.Context, id uuid.UUID) (*View, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	gs, err := m.current(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildView(m.graph, gs), nil
}

// Export returns the encoded snapshot of game id.
func (m *Manager) Export(ctx context.Context, id uuid.UUID) ([]byte, error) {
	v, err := m.View(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.Encode(v.State)
}

// current loads the stored state. Absent means pre-game; a corrupt record
// is deleted and also means pre-game.
func (m *Manager) current(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	gs, err := m.store.LoadGameState(ctx, id)
	switch {
	case errors.Is(err, state.ErrCorrupt):
		logger.WithError(logger.WithGameID(m.logger, id), err).Warn("Discarding corrupt snapshot")
		if derr := m.store.DeleteGameState(ctx, id); derr != nil {
			return nil, fmt.Errorf("failed to discard corrupt snapshot: %w", derr)
		}
		return state.New(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to load game state: %w", err)
	case gs == nil:
		return state.New(), nil
	default:
		return gs, nil
	}
}

func (m *Manager) persist(ctx context.Context, id uuid.UUID, res engine.Result) error {
	// A pre-game state is never stored; any earlier record must go so the
	// next read agrees with the engine.
	if res.DropSnapshot || !res.State.GameStarted {
		if err := m.store.DeleteGameState(ctx, id); err != nil {
			return fmt.Errorf("failed to drop snapshot: %w", err)
		}
		return nil
	}
	if err := m.store.SaveGameState(ctx, id, res.State); err != nil {
		return fmt.Errorf("failed to save game state: %w", err)
	}
	return nil
}

// publish sends presentation events. Failures are logged; the transition
// has already been persisted.
func (m *Manager) publish(ctx context.Context, id uuid.UUID, prev, next *state.GameState, a engine.Action) {
	evts := []events.Event{events.StateUpdated(next)}

	switch a.(type) {
	case engine.Reset:
		evts = append(evts, events.Reset())
	case engine.Choose:
		if next.DamageTaken && next.HP < prev.HP {
			evts = append(evts, events.Damage(prev.HP-next.HP, next.HP))
		}
		if next.PendingJumpscare != nil {
			evts = append(evts, events.Jumpscare(next.PendingJumpscare))
		}
		if node, err := m.graph.Lookup(next.CurrentScene); err == nil && node.IsTerminal() {
			evts = append(evts, events.Ended(next.CurrentScene, next.IsDead()))
		}
	}

	for _, ev := range evts {
		if err := m.publisher.Publish(ctx, id, ev); err != nil {
			m.logger.Warn("Failed to publish event", "game_id", id.String(), "event_type", ev.Type, "error", err)
		}
	}
}
