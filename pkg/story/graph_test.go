package story

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type items map[ItemID]bool

func (i items) Has(item ItemID) bool { return i[item] }

func minimalNodes() map[NodeID]*Node {
	return map[NodeID]*Node{
		"start": {
			Text:    "The road forks.",
			Choices: []Choice{{Text: "Left", To: "left"}, {Text: "Right", To: "gameOver_hp"}},
		},
		"left":        {Text: "A dead end.", IsEnding: true},
		"gameOver_hp": {Text: "You fall.", IsEnding: true},
	}
}

func TestNewGraph_Valid(t *testing.T) {
	g, err := NewGraph("minimal", minimalNodes())
	require.NoError(t, err)

	assert.Equal(t, "minimal", g.Name())
	assert.Equal(t, DefaultEntryID, g.EntryID())
	assert.Equal(t, DefaultGameOverID, g.GameOverID())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []NodeID{"gameOver_hp", "left", "start"}, g.NodeIDs())

	n, err := g.Lookup("left")
	require.NoError(t, err)
	assert.Equal(t, NodeID("left"), n.ID, "id is filled from the map key")
}

func TestNewGraph_CopiesInput(t *testing.T) {
	nodes := minimalNodes()
	g, err := NewGraph("minimal", nodes)
	require.NoError(t, err)

	nodes["start"].Choices[0].To = "nowhere"
	nodes["start"].Text = "changed"

	n, err := g.Lookup("start")
	require.NoError(t, err)
	assert.Equal(t, NodeID("left"), n.Choices[0].To)
	assert.Equal(t, "The road forks.", n.Text)
}

func TestNewGraph_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[NodeID]*Node)
		opts    []Option
		problem string
	}{
		{
			name:    "missing entry",
			mutate:  func(n map[NodeID]*Node) { delete(n, "start") },
			problem: `entry node "start" is missing`,
		},
		{
			name:    "missing game over",
			mutate:  func(n map[NodeID]*Node) { delete(n, "gameOver_hp") },
			problem: `game over node "gameOver_hp" is missing`,
		},
		{
			name: "dangling choice",
			mutate: func(n map[NodeID]*Node) {
				n["left"].Choices = []Choice{{Text: "Onward", To: "cliff"}}
			},
			problem: `node "left" choice 0 points to missing node "cliff"`,
		},
		{
			name: "choice without destination",
			mutate: func(n map[NodeID]*Node) {
				n["left"].Choices = []Choice{{Text: "Onward"}}
			},
			problem: `node "left" choice 0 has no destination`,
		},
		{
			name: "negative damage",
			mutate: func(n map[NodeID]*Node) {
				n["left"].OnArrive = &OnArrive{Damage: -5}
			},
			problem: `node "left" has negative damage -5`,
		},
		{
			name:    "null node",
			mutate:  func(n map[NodeID]*Node) { n["ghost"] = nil },
			problem: `node "ghost" is null`,
		},
		{
			name:    "custom entry missing",
			mutate:  func(map[NodeID]*Node) {},
			opts:    []Option{WithEntry("prologue")},
			problem: `entry node "prologue" is missing`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := minimalNodes()
			tt.mutate(nodes)

			_, err := NewGraph("broken", nodes, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGraph))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Problems, tt.problem)
		})
	}
}

func TestGraph_LookupUnknown(t *testing.T) {
	g, err := NewGraph("minimal", minimalNodes())
	require.NoError(t, err)

	n, err := g.Lookup("cellar")
	assert.Nil(t, n)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Contains(t, err.Error(), "cellar")
	assert.False(t, g.Has("cellar"))
}

func TestNode_IsTerminal(t *testing.T) {
	assert.True(t, (&Node{IsEnding: true}).IsTerminal())
	assert.True(t, (&Node{}).IsTerminal(), "no choices means terminal")
	assert.False(t, (&Node{Choices: []Choice{{To: "x"}}}).IsTerminal())
}

func TestAvailableChoices(t *testing.T) {
	node := &Node{
		Choices: []Choice{
			{Text: "garlic", To: "useGarlic", Requires: "Bawang"},
			{Text: "bolo", To: "fight", HideIf: "Bawang"},
			{Text: "salt", To: "fight", Requires: "Asin"},
			{Text: "run", To: "flee"},
		},
	}

	tests := []struct {
		name string
		inv  items
		want []NodeID
	}{
		{"empty inventory", items{}, []NodeID{"fight", "flee"}},
		{"garlic hides bolo", items{"Bawang": true}, []NodeID{"useGarlic", "flee"}},
		{"salt only", items{"Asin": true}, []NodeID{"fight", "fight", "flee"}},
		{"both", items{"Asin": true, "Bawang": true}, []NodeID{"useGarlic", "fight", "flee"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []NodeID
			for _, c := range AvailableChoices(node, tt.inv) {
				got = append(got, c.To)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Nil(t, AvailableChoices(nil, items{}))
}

func TestFindAvailable(t *testing.T) {
	node := &Node{Choices: []Choice{
		{Text: "bolo", To: "fight", HideIf: "Bawang"},
		{Text: "garlic", To: "useGarlic", Requires: "Bawang"},
	}}

	_, ok := FindAvailable(node, items{"Bawang": true}, "fight")
	assert.False(t, ok)

	c, ok := FindAvailable(node, items{"Bawang": true}, "useGarlic")
	assert.True(t, ok)
	assert.Equal(t, "garlic", c.Text)
}

func TestGraph_MarshalJSON(t *testing.T) {
	g, err := NewGraph("minimal", minimalNodes())
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var out struct {
		Name     string                     `json:"name"`
		Entry    string                     `json:"entry"`
		GameOver string                     `json:"gameOver"`
		Nodes    map[string]json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "minimal", out.Name)
	assert.Equal(t, "start", out.Entry)
	assert.Equal(t, "gameOver_hp", out.GameOver)
	assert.Len(t, out.Nodes, 3)
}
