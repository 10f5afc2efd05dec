package state

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jwebster45206/branch-engine/pkg/story"
)

func TestEncodeDecode(t *testing.T) {
	gs := &GameState{
		PlayerName:       "Maria",
		HP:               70,
		Inventory:        Inventory{"Salt", "Agimat"},
		CurrentScene:     "useSaltOnManananggal",
		GameStarted:      true,
		DamageTaken:      true,
		PendingJumpscare: &story.Jumpscare{Image: "manananggal.png", Sound: "scream.mp3"},
	}

	data, err := Encode(gs)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Encoded snapshot is not JSON: %v", err)
	}
	if env["format"] != SnapshotFormat {
		t.Errorf("Expected format %q, got %v", SnapshotFormat, env["format"])
	}
	if env["version"] != float64(SnapshotVersion) {
		t.Errorf("Expected version %d, got %v", SnapshotVersion, env["version"])
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !decoded.Equal(gs) {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", decoded, gs)
	}
}

func TestEncode_NilInventory(t *testing.T) {
	data, err := Encode(&GameState{PlayerName: "A", HP: 50, CurrentScene: "start", GameStarted: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(data), `"inventory":[]`) {
		t.Errorf("Expected empty inventory array in %s", data)
	}
	if _, err := Decode(data); err != nil {
		t.Errorf("Decode failed: %v", err)
	}
}

func TestEncode_Nil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Error("Expected error encoding nil state")
	}
}

func TestDecode_Legacy(t *testing.T) {
	legacy := `{"playerName":"Juan","hp":80,"inventory":["Salt"],"currentScene":"left","gameStarted":true,"damageTaken":false,"jumpScare":null}`

	gs, err := Decode([]byte(legacy))
	if err != nil {
		t.Fatalf("Decode legacy failed: %v", err)
	}
	if gs.PlayerName != "Juan" || gs.HP != 80 || gs.CurrentScene != "left" || !gs.Inventory.Has("Salt") {
		t.Errorf("Unexpected legacy state: %+v", gs)
	}
	if gs.PendingJumpscare != nil {
		t.Error("Expected no jumpscare")
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"null", `null`},
		{"array", `[]`},
		{"wrong format", `{"format":"other","version":1,"state":{}}`},
		{"future version", `{"format":"branch-engine/gamestate","version":2,"state":{"playerName":"A","hp":1,"inventory":[],"currentScene":"start","gameStarted":true}}`},
		{"unknown envelope field", `{"format":"branch-engine/gamestate","version":1,"extra":true,"state":{"playerName":"A","hp":1,"inventory":[],"currentScene":"start","gameStarted":true}}`},
		{"unknown state field", `{"playerName":"A","hp":1,"inventory":[],"currentScene":"start","gameStarted":true,"mana":3}`},
		{"missing hp", `{"playerName":"A","inventory":[],"currentScene":"start","gameStarted":true}`},
		{"missing inventory", `{"playerName":"A","hp":1,"currentScene":"start","gameStarted":true}`},
		{"hp over max", `{"playerName":"A","hp":101,"inventory":[],"currentScene":"start","gameStarted":true}`},
		{"hp wrong type", `{"playerName":"A","hp":"full","inventory":[],"currentScene":"start","gameStarted":true}`},
		{"duplicate item", `{"playerName":"A","hp":1,"inventory":["Salt","Salt"],"currentScene":"start","gameStarted":true}`},
		{"blank item", `{"playerName":"A","hp":1,"inventory":[" "],"currentScene":"start","gameStarted":true}`},
		{"started without name", `{"playerName":"  ","hp":1,"inventory":[],"currentScene":"start","gameStarted":true}`},
		{"started without scene", `{"playerName":"A","hp":1,"inventory":[],"currentScene":"","gameStarted":true}`},
		{"trailing data", `{"playerName":"A","hp":1,"inventory":[],"currentScene":"start","gameStarted":true} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestDecode_NegativeHP(t *testing.T) {
	gs, err := Decode([]byte(`{"playerName":"A","hp":-30,"inventory":[],"currentScene":"gameOver_hp","gameStarted":true}`))
	if err != nil {
		t.Fatalf("Negative hp should decode, got %v", err)
	}
	if gs.HP != -30 {
		t.Errorf("Expected hp -30, got %d", gs.HP)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("Expected error for nil state")
	}
	if err := Validate(New()); err != nil {
		t.Errorf("Pre-game state should validate: %v", err)
	}
}
