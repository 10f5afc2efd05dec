package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/branch-engine/pkg/story"
)

const (
	SnapshotFormat  = "branch-engine/gamestate"
	SnapshotVersion = 1
)

// ErrCorrupt is returned when a stored snapshot cannot be parsed or fails
// shape validation. Callers discard the record and start fresh.
var ErrCorrupt = errors.New("corrupt game state snapshot")

type envelope struct {
	Format  string          `json:"format"`
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	State   json.RawMessage `json:"state"`
}

// wireState mirrors GameState with pointers so missing fields can be told
// apart from zero values.
type wireState struct {
	PlayerName   *string          `json:"playerName"`
	HP           *int             `json:"hp"`
	Inventory    *[]story.ItemID  `json:"inventory"`
	CurrentScene *story.NodeID    `json:"currentScene"`
	GameStarted  *bool            `json:"gameStarted"`
	DamageTaken  *bool            `json:"damageTaken"`
	JumpScare    *story.Jumpscare `json:"jumpScare"`
}

// Encode serializes gs inside a versioned envelope.
func Encode(gs *GameState) ([]byte, error) {
	if gs == nil {
		return nil, errors.New("cannot encode nil game state")
	}
	cp := gs.Clone()
	raw, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game state: %w", err)
	}
	data, err := json.Marshal(envelope{
		Format:  SnapshotFormat,
		Version: SnapshotVersion,
		SavedAt: time.Now().UTC(),
		State:   raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot envelope: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot written by Encode. A bare state object without
// an envelope (the browser build's localStorage record) is read as version 0.
// Any mismatch with the expected shape returns ErrCorrupt.
func Decode(data []byte) (*GameState, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: snapshot is null", ErrCorrupt)
	}

	raw := json.RawMessage(data)
	if _, ok := probe["format"]; ok {
		var env envelope
		if err := strictUnmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if env.Format != SnapshotFormat {
			return nil, fmt.Errorf("%w: unknown format %q", ErrCorrupt, env.Format)
		}
		if env.Version != SnapshotVersion {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, env.Version)
		}
		raw = env.State
	}

	var w wireState
	if err := strictUnmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	gs, err := w.toGameState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return gs, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after snapshot")
	}
	return nil
}

func (w *wireState) toGameState() (*GameState, error) {
	var missing []string
	if w.PlayerName == nil {
		missing = append(missing, "playerName")
	}
	if w.HP == nil {
		missing = append(missing, "hp")
	}
	if w.Inventory == nil {
		missing = append(missing, "inventory")
	}
	if w.CurrentScene == nil {
		missing = append(missing, "currentScene")
	}
	if w.GameStarted == nil {
		missing = append(missing, "gameStarted")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	gs := &GameState{
		PlayerName:       *w.PlayerName,
		HP:               *w.HP,
		Inventory:        Inventory(*w.Inventory).Clone(),
		CurrentScene:     *w.CurrentScene,
		GameStarted:      *w.GameStarted,
		PendingJumpscare: w.JumpScare,
	}
	if w.DamageTaken != nil {
		gs.DamageTaken = *w.DamageTaken
	}
	if err := Validate(gs); err != nil {
		return nil, err
	}
	return gs, nil
}

// Validate checks the shape invariants of a state: health ceiling, inventory
// uniqueness, and a named player on a scene once the game has started.
func Validate(gs *GameState) error {
	if gs == nil {
		return errors.New("game state is nil")
	}
	if gs.HP > MaxHP {
		return fmt.Errorf("hp %d exceeds maximum %d", gs.HP, MaxHP)
	}
	for _, item := range gs.Inventory {
		if strings.TrimSpace(string(item)) == "" {
			return errors.New("inventory holds a blank item")
		}
	}
	if item, dup := gs.Inventory.duplicate(); dup {
		return fmt.Errorf("inventory holds %q more than once", item)
	}
	if gs.GameStarted {
		if strings.TrimSpace(gs.PlayerName) == "" {
			return errors.New("started game has no player name")
		}
		if gs.CurrentScene == "" {
			return errors.New("started game has no current scene")
		}
	}
	return nil
}
