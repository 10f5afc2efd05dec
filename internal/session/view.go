package session

import (
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// View is everything a presentation layer needs to draw one screen.
type View struct {
	State *state.GameState `json:"state"`

	// Node is the current node; nil before the game starts or when the
	// current scene is missing from the graph.
	Node     *story.Node    `json:"node,omitempty"`
	Choices  []story.Choice `json:"choices"`
	Terminal bool           `json:"terminal"`
	Died     bool           `json:"died"`

	// PathNotFound is set when the saved scene no longer exists. The only
	// sensible action is a reset.
	PathNotFound bool `json:"pathNotFound"`
}

// BuildView derives the render model of gs under g.
func BuildView(g *story.Graph, gs *state.GameState) *View {
	v := &View{State: gs, Choices: []story.Choice{}}
	if !gs.GameStarted {
		return v
	}

	node, err := g.Lookup(gs.CurrentScene)
	if err != nil {
		v.PathNotFound = true
		return v
	}
	v.Node = node
	v.Terminal = node.IsTerminal()
	v.Died = gs.IsDead()
	if !v.Terminal {
		v.Choices = story.AvailableChoices(node, gs.Inventory)
	}
	return v
}
