package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/branch-engine/internal/events"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/storage"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(ctx context.Context, gameID uuid.UUID, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.GameID = gameID.String()
	r.events = append(r.events, event)
	return r.err
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func setup(t *testing.T) (*Manager, *storage.MockStorage, *recorder) {
	t.Helper()
	store := storage.NewMockStorage()
	rec := &recorder{}
	return NewManager(story.MustDefault(), store, rec, logger.Discard()), store, rec
}

func seed(t *testing.T, store *storage.MockStorage, id uuid.UUID, scene story.NodeID, hp int, items ...story.ItemID) {
	t.Helper()
	gs := state.New()
	gs.PlayerName = "Ana"
	gs.GameStarted = true
	gs.CurrentScene = scene
	gs.HP = hp
	for _, item := range items {
		gs.Inventory = gs.Inventory.With(item)
	}
	require.NoError(t, store.SaveGameState(context.Background(), id, gs))
}

func TestManager_StartAndChoose(t *testing.T) {
	m, store, rec := setup(t)
	ctx := context.Background()
	id := uuid.New()

	gs, err := m.Dispatch(ctx, id, engine.Start{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, story.NodeID("start"), gs.CurrentScene)

	gs, err = m.Dispatch(ctx, id, engine.Choose{To: "askCaptain"})
	require.NoError(t, err)
	assert.True(t, gs.Inventory.Has("Bawang"))

	stored, err := store.LoadGameState(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Equal(gs))
	assert.Equal(t, []events.EventType{events.EventTypeStateUpdated, events.EventTypeStateUpdated}, rec.types())
}

func TestManager_PreGameIsNotPersisted(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()

	gs, err := m.Dispatch(ctx, id, engine.AcknowledgeDamage{})
	require.NoError(t, err)
	assert.False(t, gs.GameStarted)
	assert.Equal(t, 0, store.Saves())

	_, err = m.Dispatch(ctx, id, engine.Choose{To: "askCaptain"})
	assert.ErrorIs(t, err, engine.ErrNotStarted)
}

func TestManager_LoadPreGameSnapshotDropsRecord(t *testing.T) {
	m, store, rec := setup(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := m.Dispatch(ctx, id, engine.Start{Name: "Ana"})
	require.NoError(t, err)
	_, ok := store.Raw(id)
	require.True(t, ok)

	gs, err := m.Dispatch(ctx, id, engine.Load{Snapshot: state.New()})
	require.NoError(t, err)
	assert.False(t, gs.GameStarted)

	_, ok = store.Raw(id)
	assert.False(t, ok, "stored record must not outlive the adopted pre-game state")

	view, err := m.View(ctx, id)
	require.NoError(t, err)
	assert.False(t, view.State.GameStarted)
	assert.Empty(t, view.State.PlayerName)
	assert.Contains(t, rec.types(), events.EventTypeStateUpdated)
}

func TestManager_InvalidChoiceLeavesStorageAlone(t *testing.T) {
	m, store, rec := setup(t)
	ctx := context.Background()
	id := uuid.New()
	seed(t, store, id, "investigateTiyanak", 100, "Agimat")
	before, _ := store.Raw(id)

	gs, err := m.Dispatch(ctx, id, engine.Choose{To: "tiyanakDamage"})
	assert.ErrorIs(t, err, engine.ErrInvalidChoice)
	assert.Equal(t, story.NodeID("investigateTiyanak"), gs.CurrentScene)

	after, _ := store.Raw(id)
	assert.Equal(t, before, after)
	assert.Empty(t, rec.types())
}

func TestManager_DamageJumpscareAndDeathEvents(t *testing.T) {
	m, store, rec := setup(t)
	ctx := context.Background()

	survivor := uuid.New()
	seed(t, store, survivor, "baleteTree_approach", 80)
	gs, err := m.Dispatch(ctx, survivor, engine.Choose{To: "finalFight_direct"})
	require.NoError(t, err)
	assert.Equal(t, 30, gs.HP)
	assert.Equal(t, []events.EventType{
		events.EventTypeStateUpdated,
		events.EventTypeDamage,
		events.EventTypeJumpscare,
	}, rec.types())

	rec.reset()
	doomed := uuid.New()
	seed(t, store, doomed, "baleteTree_approach", 40)
	gs, err = m.Dispatch(ctx, doomed, engine.Choose{To: "finalFight_direct"})
	require.NoError(t, err)
	assert.Equal(t, story.NodeID("gameOver_hp"), gs.CurrentScene)
	assert.Nil(t, gs.PendingJumpscare)
	assert.Equal(t, []events.EventType{
		events.EventTypeStateUpdated,
		events.EventTypeDamage,
		events.EventTypeEnded,
	}, rec.types())
}

func TestManager_TransientFlagsPersistUntilCleared(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()
	seed(t, store, id, "baleteTree_approach", 80)

	_, err := m.Dispatch(ctx, id, engine.Choose{To: "finalFight_direct"})
	require.NoError(t, err)

	v, err := m.View(ctx, id)
	require.NoError(t, err)
	assert.True(t, v.State.DamageTaken)
	assert.NotNil(t, v.State.PendingJumpscare)

	_, err = m.Dispatch(ctx, id, engine.AcknowledgeDamage{})
	require.NoError(t, err)
	gs, err := m.Dispatch(ctx, id, engine.ClearJumpscare{})
	require.NoError(t, err)
	assert.False(t, gs.DamageTaken)
	assert.Nil(t, gs.PendingJumpscare)
}

func TestManager_ResetDropsSnapshot(t *testing.T) {
	m, store, rec := setup(t)
	ctx := context.Background()
	id := uuid.New()
	seed(t, store, id, "altar", 90, "Agimat")

	gs, err := m.Dispatch(ctx, id, engine.Reset{})
	require.NoError(t, err)
	assert.True(t, gs.Equal(state.New()))

	_, ok := store.Raw(id)
	assert.False(t, ok)
	assert.Contains(t, rec.types(), events.EventTypeReset)
}

func TestManager_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		m, _, _ := setup(t)
		gs, err := m.Resume(ctx, uuid.New())
		require.NoError(t, err)
		assert.True(t, gs.Equal(state.New()))
	})

	t.Run("corrupt is discarded", func(t *testing.T) {
		m, store, _ := setup(t)
		id := uuid.New()
		store.PutRaw(id, []byte(`{"hp": "full"}`))

		gs, err := m.Resume(ctx, id)
		require.NoError(t, err)
		assert.True(t, gs.Equal(state.New()))
		_, ok := store.Raw(id)
		assert.False(t, ok)
	})

	t.Run("saved game clears jumpscare", func(t *testing.T) {
		m, store, _ := setup(t)
		id := uuid.New()
		gs := state.New()
		gs.PlayerName = "Ana"
		gs.GameStarted = true
		gs.CurrentScene = "bellTower"
		gs.PendingJumpscare = &story.Jumpscare{Image: "wakwak.png"}
		require.NoError(t, store.SaveGameState(ctx, id, gs))

		resumed, err := m.Resume(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, story.NodeID("bellTower"), resumed.CurrentScene)
		assert.Nil(t, resumed.PendingJumpscare)

		stored, err := store.LoadGameState(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, stored.PendingJumpscare)
	})

	t.Run("missing scene still loads", func(t *testing.T) {
		m, store, _ := setup(t)
		id := uuid.New()
		seed(t, store, id, "removedInLaterEdition", 60)

		gs, err := m.Resume(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, story.NodeID("removedInLaterEdition"), gs.CurrentScene)

		v, err := m.View(ctx, id)
		require.NoError(t, err)
		assert.True(t, v.PathNotFound)
		assert.Empty(t, v.Choices)

		_, err = m.Dispatch(ctx, id, engine.Choose{To: "start"})
		assert.ErrorIs(t, err, engine.ErrNodeNotFound)

		gs, err = m.Dispatch(ctx, id, engine.Reset{})
		require.NoError(t, err)
		assert.False(t, gs.GameStarted)
	})
}

func TestManager_View(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()

	v, err := m.View(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, v.State.GameStarted)
	assert.Nil(t, v.Node)

	id := uuid.New()
	seed(t, store, id, "bellTower", 100, "Bawang")
	v, err = m.View(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, v.Node)
	require.Len(t, v.Choices, 1)
	assert.Equal(t, story.NodeID("useGarlicOnWakwak"), v.Choices[0].To)

	ending := uuid.New()
	seed(t, store, ending, "gameOver_hp", -5)
	v, err = m.View(ctx, ending)
	require.NoError(t, err)
	assert.True(t, v.Terminal)
	assert.True(t, v.Died)
	assert.Empty(t, v.Choices)
}

func TestManager_Export(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()
	seed(t, store, id, "altar", 90, "Agimat")

	data, err := m.Export(ctx, id)
	require.NoError(t, err)

	gs, err := state.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, story.NodeID("altar"), gs.CurrentScene)
}

func TestManager_StorageFailures(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	boom := errors.New("disk full")
	store.SetSaveError(boom)

	_, err := m.Dispatch(ctx, uuid.New(), engine.Start{Name: "Ana"})
	assert.ErrorIs(t, err, boom)

	_, err = m.Dispatch(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, engine.ErrUnknownAction)
}

func TestManager_PublishFailureIsNotFatal(t *testing.T) {
	m, _, rec := setup(t)
	rec.err = errors.New("redis down")

	_, err := m.Dispatch(context.Background(), uuid.New(), engine.Start{Name: "Ana"})
	assert.NoError(t, err)
}

func TestManager_ConcurrentDispatchIsSerialized(t *testing.T) {
	m, store, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()
	seed(t, store, id, "start", 100)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Dispatch(ctx, id, engine.Choose{To: "askAlbularyo"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// Only the first transition sees "start"; the rest find askAlbularyo.
	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, engine.ErrInvalidChoice)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, m.locks.len())
}
