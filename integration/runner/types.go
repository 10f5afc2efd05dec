package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

// ResetSeedAction is a step type that restores the suite's seed state instead
// of sending an engine action.
const ResetSeedAction engine.Kind = "reset_seed"

// TestSuite defines a complete playthrough.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name   string     `yaml:"name"`
	Player string     `yaml:"player,omitempty"` // Name sent when the game is created
	Seed   *SeedState `yaml:"seed,omitempty"`   // Loaded after creation when set
	Steps  []TestStep `yaml:"steps,omitempty"`
	Cases  []string   `yaml:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// SeedState is the mid-game position a suite starts from.
type SeedState struct {
	Scene     story.NodeID   `yaml:"scene"`
	HP        *int           `yaml:"hp,omitempty"`
	Inventory []story.ItemID `yaml:"inventory,omitempty"`
}

// TestStep is one action and its expected outcome.
// Use action: "reset_seed" to return to the seed state.
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Action       engine.Kind  `yaml:"action"`
	PlayerName   string       `yaml:"player_name,omitempty"` // For start
	To           story.NodeID `yaml:"to,omitempty"`          // For choose
	Snapshot     string       `yaml:"snapshot,omitempty"`    // Raw JSON for load
	Expectations Expectations `yaml:"expect"`
}

// Expectations defines what to check after a step executes. Nil fields are
// not checked.
type Expectations struct {
	Status       *int           `yaml:"status,omitempty"`     // HTTP status, 200 when omitted
	ErrorCode    *string        `yaml:"error_code,omitempty"` // Machine-readable error code
	Scene        *story.NodeID  `yaml:"scene,omitempty"`
	HP           *int           `yaml:"hp,omitempty"`
	Inventory    []story.ItemID `yaml:"inventory,omitempty"` // Full inventory contents (order independent)
	GameStarted  *bool          `yaml:"game_started,omitempty"`
	DamageTaken  *bool          `yaml:"damage_taken,omitempty"`
	Jumpscare    *bool          `yaml:"jumpscare,omitempty"`
	Terminal     *bool          `yaml:"terminal,omitempty"`
	Died         *bool          `yaml:"died,omitempty"`
	PathNotFound *bool          `yaml:"path_not_found,omitempty"`
	Choices      []story.NodeID `yaml:"choices,omitempty"` // Destinations offered, in order
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	IsReset  bool // True for reset_seed steps (not counted toward pass/fail metrics)
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	GameID   uuid.UUID // ID of the game used for this test
}
