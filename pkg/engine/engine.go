// Package engine holds the transition function of the narrative engine.
// Apply is pure: it reads a graph and a state, never performs I/O, and
// always returns a fresh state value.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

var (
	ErrInvalidChoice   = errors.New("choice is not available from the current node")
	ErrNotStarted      = errors.New("game has not started")
	ErrInvalidName     = errors.New("player name is empty")
	ErrInvalidSnapshot = errors.New("snapshot failed validation")
	ErrUnknownAction   = errors.New("unknown action")

	// ErrNodeNotFound is story.ErrNodeNotFound, so callers only import engine.
	ErrNodeNotFound = story.ErrNodeNotFound
)

// Result is the outcome of a transition. DropSnapshot tells the shell to
// delete any persisted snapshot instead of saving State.
type Result struct {
	State        *state.GameState
	DropSnapshot bool
}

// Apply computes the state that follows gs under a. On error the returned
// state is a copy of gs.
func Apply(g *story.Graph, gs *state.GameState, a Action) (Result, error) {
	if gs == nil {
		gs = state.New()
	}
	if g == nil {
		return Result{State: gs.Clone()}, errors.New("story graph is nil")
	}

	switch act := a.(type) {
	case Start:
		return start(g, gs, act)
	case Choose:
		return choose(g, gs, act)
	case AcknowledgeDamage:
		next := gs.Clone()
		next.DamageTaken = false
		return Result{State: next}, nil
	case ClearJumpscare:
		next := gs.Clone()
		next.PendingJumpscare = nil
		return Result{State: next}, nil
	case Reset:
		return Result{State: state.New(), DropSnapshot: true}, nil
	case Load:
		return load(gs, act)
	default:
		return Result{State: gs.Clone()}, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}

func start(g *story.Graph, gs *state.GameState, a Start) (Result, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return Result{State: gs.Clone()}, ErrInvalidName
	}
	next := state.New()
	next.PlayerName = name
	next.GameStarted = true
	next.CurrentScene = g.EntryID()
	return Result{State: next}, nil
}

func choose(g *story.Graph, gs *state.GameState, a Choose) (Result, error) {
	if !gs.GameStarted {
		return Result{State: gs.Clone()}, ErrNotStarted
	}

	current, err := g.Lookup(gs.CurrentScene)
	if err != nil {
		return Result{State: gs.Clone()}, err
	}
	if _, ok := story.FindAvailable(current, gs.Inventory, a.To); !ok {
		return Result{State: gs.Clone()}, fmt.Errorf("%w: %q from %q", ErrInvalidChoice, a.To, current.ID)
	}
	dest, err := g.Lookup(a.To)
	if err != nil {
		return Result{State: gs.Clone()}, err
	}

	next := gs.Clone()
	if item := dest.GrantedItem(); item != "" {
		next.Inventory = next.Inventory.With(item)
	}
	damage := dest.Damage()
	next.HP -= damage
	next.DamageTaken = damage > 0

	if next.IsDead() {
		// Death overrides the destination, including its jumpscare.
		next.CurrentScene = g.GameOverID()
		next.PendingJumpscare = nil
		return Result{State: next}, nil
	}

	next.CurrentScene = dest.ID
	next.PendingJumpscare = nil
	if dest.Jumpscare != nil {
		js := *dest.Jumpscare
		next.PendingJumpscare = &js
	}
	return Result{State: next}, nil
}

func load(gs *state.GameState, a Load) (Result, error) {
	if a.Snapshot == nil {
		return Result{State: gs.Clone()}, fmt.Errorf("%w: snapshot is nil", ErrInvalidSnapshot)
	}
	if err := state.Validate(a.Snapshot); err != nil {
		return Result{State: gs.Clone()}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	next := a.Snapshot.Clone()
	next.PendingJumpscare = nil
	return Result{State: next}, nil
}
