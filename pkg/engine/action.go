package engine

import (
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// Kind names an action on the wire and in logs.
type Kind string

const (
	KindStart             Kind = "start"
	KindChoose            Kind = "choose"
	KindAcknowledgeDamage Kind = "acknowledge_damage"
	KindClearJumpscare    Kind = "clear_jumpscare"
	KindReset             Kind = "reset"
	KindLoad              Kind = "load"
)

// Action is one player or host intent. The set is closed; only the types in
// this file implement it.
type Action interface {
	Kind() Kind
	action()
}

// Start begins a new game for the named player.
type Start struct {
	Name string
}

// Choose follows the available choice whose destination is To.
type Choose struct {
	To story.NodeID
}

// AcknowledgeDamage clears the damage indicator once the shell has shown it.
type AcknowledgeDamage struct{}

// ClearJumpscare dismisses a pending jumpscare.
type ClearJumpscare struct{}

// Reset returns to the pre-game state and asks the shell to drop the saved snapshot.
type Reset struct{}

// Load restores a previously saved state.
type Load struct {
	Snapshot *state.GameState
}

func (Start) Kind() Kind             { return KindStart }
func (Choose) Kind() Kind            { return KindChoose }
func (AcknowledgeDamage) Kind() Kind { return KindAcknowledgeDamage }
func (ClearJumpscare) Kind() Kind    { return KindClearJumpscare }
func (Reset) Kind() Kind             { return KindReset }
func (Load) Kind() Kind              { return KindLoad }

func (Start) action()             {}
func (Choose) action()            {}
func (AcknowledgeDamage) action() {}
func (ClearJumpscare) action()    {}
func (Reset) action()             {}
func (Load) action()              {}

// Kinds lists every action kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindStart, KindChoose, KindAcknowledgeDamage, KindClearJumpscare, KindReset, KindLoad}
}
