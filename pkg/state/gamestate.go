package state

import (
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// MaxHP is the health every game starts with. No effect heals, so it is also the ceiling.
const MaxHP = 100

// GameState is a snapshot of one playthrough. Transitions never modify a
// GameState in place; they return a new one.
type GameState struct {
	PlayerName       string           `json:"playerName"`   // Set by Start, never changed afterwards
	HP               int              `json:"hp"`           // Only the lower bound is enforced (<= 0 ends the game)
	Inventory        Inventory        `json:"inventory"`    // Set of held items
	CurrentScene     story.NodeID     `json:"currentScene"` // Current node id
	GameStarted      bool             `json:"gameStarted"`  // false before Start and after Reset
	DamageTaken      bool             `json:"damageTaken"`  // True for the snapshot right after damage, until acknowledged
	PendingJumpscare *story.Jumpscare `json:"jumpScare"`    // Set on entering a node with a jumpscare, until cleared
}

// New returns the canonical pre-game state.
func New() *GameState {
	return &GameState{
		HP:           MaxHP,
		Inventory:    Inventory{},
		CurrentScene: story.DefaultEntryID,
	}
}

// Clone returns a deep copy.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	cp := *gs
	cp.Inventory = gs.Inventory.Clone()
	if gs.PendingJumpscare != nil {
		js := *gs.PendingJumpscare
		cp.PendingJumpscare = &js
	}
	return &cp
}

// Equal reports structural equality. Inventories compare as sets.
func (gs *GameState) Equal(other *GameState) bool {
	if gs == nil || other == nil {
		return gs == other
	}
	if gs.PlayerName != other.PlayerName ||
		gs.HP != other.HP ||
		gs.CurrentScene != other.CurrentScene ||
		gs.GameStarted != other.GameStarted ||
		gs.DamageTaken != other.DamageTaken {
		return false
	}
	if !gs.Inventory.Equal(other.Inventory) {
		return false
	}
	switch {
	case gs.PendingJumpscare == nil && other.PendingJumpscare == nil:
		return true
	case gs.PendingJumpscare == nil || other.PendingJumpscare == nil:
		return false
	default:
		return *gs.PendingJumpscare == *other.PendingJumpscare
	}
}

// IsDead reports whether health has run out.
func (gs *GameState) IsDead() bool {
	return gs.HP <= 0
}
