package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNodeNotFound is returned when a graph lacks a requested node id.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidGraph is returned when authored content fails load-time validation.
	ErrInvalidGraph = errors.New("invalid story graph")
)

// ValidationError lists every problem found while validating a graph.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:\n  - %s", ErrInvalidGraph, strings.Join(e.Problems, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidGraph
}

// Graph is an immutable mapping of node ids to nodes. It is safe for
// concurrent reads once constructed.
type Graph struct {
	name       string
	entryID    NodeID
	gameOverID NodeID
	nodes      map[NodeID]*Node
}

// Option customises graph construction.
type Option func(*Graph)

// WithEntry overrides the entry node id.
func WithEntry(id NodeID) Option {
	return func(g *Graph) { g.entryID = id }
}

// WithGameOver overrides the node forced on health depletion.
func WithGameOver(id NodeID) Option {
	return func(g *Graph) { g.gameOverID = id }
}

// NewGraph builds and validates a graph. Node ids are taken from the map keys.
// The nodes are copied so later changes to the input do not leak in.
func NewGraph(name string, nodes map[NodeID]*Node, opts ...Option) (*Graph, error) {
	g := &Graph{
		name:       name,
		entryID:    DefaultEntryID,
		gameOverID: DefaultGameOverID,
		nodes:      make(map[NodeID]*Node, len(nodes)),
	}
	for _, opt := range opts {
		opt(g)
	}

	for id, n := range nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.ID = id
		cp.Choices = append([]Choice(nil), n.Choices...)
		if n.OnArrive != nil {
			oa := *n.OnArrive
			cp.OnArrive = &oa
		}
		if n.Jumpscare != nil {
			js := *n.Jumpscare
			cp.Jumpscare = &js
		}
		g.nodes[id] = &cp
	}

	if problems := g.validate(nodes); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return g, nil
}

func (g *Graph) validate(raw map[NodeID]*Node) []string {
	var problems []string
	for id, n := range raw {
		if n == nil {
			problems = append(problems, fmt.Sprintf("node %q is null", id))
		}
	}
	if _, ok := g.nodes[g.entryID]; !ok {
		problems = append(problems, fmt.Sprintf("entry node %q is missing", g.entryID))
	}
	if _, ok := g.nodes[g.gameOverID]; !ok {
		problems = append(problems, fmt.Sprintf("game over node %q is missing", g.gameOverID))
	}

	for _, id := range g.NodeIDs() {
		n := g.nodes[id]
		if strings.TrimSpace(string(id)) == "" {
			problems = append(problems, "node with empty id")
		}
		if n.OnArrive != nil && n.OnArrive.Damage < 0 {
			problems = append(problems, fmt.Sprintf("node %q has negative damage %d", id, n.OnArrive.Damage))
		}
		for i, c := range n.Choices {
			if c.To == "" {
				problems = append(problems, fmt.Sprintf("node %q choice %d has no destination", id, i))
				continue
			}
			if _, ok := g.nodes[c.To]; !ok {
				problems = append(problems, fmt.Sprintf("node %q choice %d points to missing node %q", id, i, c.To))
			}
		}
	}
	return problems
}

// Name is the story's display name.
func (g *Graph) Name() string { return g.name }

// EntryID is the node every new game starts at.
func (g *Graph) EntryID() NodeID { return g.entryID }

// GameOverID is the node forced when health reaches zero.
func (g *Graph) GameOverID() NodeID { return g.gameOverID }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Lookup returns the node for id. Callers must treat the node as read-only.
func (g *Graph) Lookup(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n, nil
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeIDs returns every node id in sorted order.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type graphJSON struct {
	Name     string           `json:"name"`
	Entry    NodeID           `json:"entry"`
	GameOver NodeID           `json:"gameOver"`
	Nodes    map[NodeID]*Node `json:"nodes"`
}

// MarshalJSON exposes the graph to presentation clients.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{
		Name:     g.name,
		Entry:    g.entryID,
		GameOver: g.gameOverID,
		Nodes:    g.nodes,
	})
}
