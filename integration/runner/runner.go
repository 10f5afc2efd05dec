package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/branch-engine/internal/handlers"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// DefaultPlayer is used when a suite does not name its player.
const DefaultPlayer = "Tester"

// Runner plays test suites against a running branch-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML file. Unknown keys are
// rejected so a typo in an expectation does not silently pass.
func LoadTestSuite(filename string) (TestSuite, error) {
	f, err := os.Open(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}
	defer func() { _ = f.Close() }()

	var suite TestSuite
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// DiscoverTestFiles lists the case files in dir, sorted by name.
func DiscoverTestFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// RunSuite executes a complete test suite on a fresh game
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	player := suite.Player
	if player == "" {
		player = DefaultPlayer
	}

	gameID, err := CreateGame(ctx, r.Client, r.BaseURL, player)
	if err != nil {
		result.Error = fmt.Errorf("failed to create game: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.GameID = gameID

	if err := r.applySeed(ctx, gameID, player, suite.Seed); err != nil {
		result.Error = fmt.Errorf("failed to seed game: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, gameID, player, suite.Seed, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// applySeed loads the seed position through the public load action.
func (r *Runner) applySeed(ctx context.Context, gameID uuid.UUID, player string, seed *SeedState) error {
	if seed == nil {
		return nil
	}
	snapshot, err := seed.snapshot(player)
	if err != nil {
		return err
	}
	resp, err := PostAction(ctx, r.Client, r.BaseURL, gameID, handlers.ActionRequest{
		Type:     engine.KindLoad,
		Snapshot: snapshot,
	})
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("load returned %d: %s", resp.Status, resp.describeError())
	}
	return nil
}

func (s *SeedState) snapshot(player string) (json.RawMessage, error) {
	gs := state.New()
	gs.PlayerName = player
	gs.GameStarted = true
	gs.CurrentScene = s.Scene
	if s.HP != nil {
		gs.HP = *s.HP
	}
	for _, item := range s.Inventory {
		gs.Inventory = gs.Inventory.With(item)
	}
	return state.Encode(gs)
}

func (r *Runner) runStep(ctx context.Context, gameID uuid.UUID, player string, seed *SeedState, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	var (
		resp *APIResponse
		err  error
	)
	if step.Action == ResetSeedAction {
		result.IsReset = true
		if err = r.applySeed(ctx, gameID, player, seed); err == nil {
			resp, err = GetGame(ctx, r.Client, r.BaseURL, gameID)
		}
	} else {
		resp, err = PostAction(ctx, r.Client, r.BaseURL, gameID, handlers.ActionRequest{
			Type:     step.Action,
			Name:     step.PlayerName,
			To:       step.To,
			Snapshot: json.RawMessage(step.Snapshot),
		})
	}
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if err := checkExpectations(step.Expectations, resp); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// checkExpectations validates a step's expectations against the API reply
func checkExpectations(exp Expectations, resp *APIResponse) error {
	wantStatus := http.StatusOK
	if exp.Status != nil {
		wantStatus = *exp.Status
	}
	if resp.Status != wantStatus {
		return fmt.Errorf("expected status %d, got %d (%s)", wantStatus, resp.Status, resp.describeError())
	}

	if exp.ErrorCode != nil {
		if resp.Error == nil || resp.Error.Code != *exp.ErrorCode {
			return fmt.Errorf("expected error code %q, got %q", *exp.ErrorCode, resp.describeError())
		}
	}

	if resp.Game == nil || resp.Game.View == nil {
		if exp.hasViewChecks() {
			return fmt.Errorf("expected a game view, got status %d", resp.Status)
		}
		return nil
	}
	view := resp.Game.View
	gs := view.State

	if exp.Scene != nil && gs.CurrentScene != *exp.Scene {
		return fmt.Errorf("expected scene %s, got %s", *exp.Scene, gs.CurrentScene)
	}
	if exp.HP != nil && gs.HP != *exp.HP {
		return fmt.Errorf("expected hp %d, got %d", *exp.HP, gs.HP)
	}

	// Full inventory check (order independent)
	if exp.Inventory != nil {
		if !gs.Inventory.Equal(state.Inventory(exp.Inventory)) {
			return fmt.Errorf("expected inventory %v, got %v", exp.Inventory, gs.Inventory)
		}
	}

	if err := checkBool("game_started", exp.GameStarted, gs.GameStarted); err != nil {
		return err
	}
	if err := checkBool("damage_taken", exp.DamageTaken, gs.DamageTaken); err != nil {
		return err
	}
	if err := checkBool("jumpscare", exp.Jumpscare, gs.PendingJumpscare != nil); err != nil {
		return err
	}
	if err := checkBool("terminal", exp.Terminal, view.Terminal); err != nil {
		return err
	}
	if err := checkBool("died", exp.Died, view.Died); err != nil {
		return err
	}
	if err := checkBool("path_not_found", exp.PathNotFound, view.PathNotFound); err != nil {
		return err
	}

	if exp.Choices != nil {
		got := make([]story.NodeID, 0, len(view.Choices))
		for _, c := range view.Choices {
			got = append(got, c.To)
		}
		if fmt.Sprint(got) != fmt.Sprint(exp.Choices) {
			return fmt.Errorf("expected choices %v, got %v", exp.Choices, got)
		}
	}

	return nil
}

func checkBool(field string, want *bool, got bool) error {
	if want != nil && *want != got {
		return fmt.Errorf("expected %s to be %t, got %t", field, *want, got)
	}
	return nil
}

func (e Expectations) hasViewChecks() bool {
	return e.Scene != nil || e.HP != nil || e.Inventory != nil ||
		e.GameStarted != nil || e.DamageTaken != nil || e.Jumpscare != nil ||
		e.Terminal != nil || e.Died != nil || e.PathNotFound != nil || e.Choices != nil
}
