package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/branch-engine/internal/handlers"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/internal/session"
	"github.com/jwebster45206/branch-engine/pkg/storage"
	"github.com/jwebster45206/branch-engine/pkg/story"
)

const casesDir = "../cases"

// newInProcessRunner serves the real router over httptest so the bundled
// cases run without an external API.
func newInProcessRunner(t *testing.T) *Runner {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddStory(story.DefaultStoryID, story.MustDefault())
	log := logger.Discard()
	manager := session.NewManager(story.MustDefault(), store, nil, log)
	srv := httptest.NewServer(handlers.NewRouter(handlers.Deps{Storage: store, Manager: manager, Logger: log}))
	t.Cleanup(srv.Close)

	r := NewRunner(srv.URL + "/")
	r.Client = srv.Client()
	r.Logger = t.Logf
	return r
}

func TestBundledCases(t *testing.T) {
	r := newInProcessRunner(t)

	files, err := DiscoverTestFiles(casesDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		jobs, err := LoadTestSuiteWithExpansion(file, casesDir)
		require.NoError(t, err, file)

		for _, job := range jobs {
			t.Run(job.Name, func(t *testing.T) {
				result, err := r.RunSuite(context.Background(), job.Suite)
				require.NoError(t, err)
				for _, step := range result.Results {
					assert.True(t, step.Success, "%s: %v", step.StepName, step.Error)
				}
			})
		}
	}
}

func TestLoadTestSuiteWithExpansion_Sequence(t *testing.T) {
	jobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, "sequences", "smoke.yaml"), casesDir)
	require.NoError(t, err)

	var names []string
	for _, job := range jobs {
		names = append(names, job.Name)
	}
	assert.Equal(t, []string{
		"Salt path to the good ending",
		"Health runs out in the final fight",
		"Rejected actions leave the game alone",
	}, names)
}

func TestLoadTestSuite_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: typo\nsteps:\n  - action: choose\n    expect:\n      sceen: start\n"), 0o644))

	_, err := LoadTestSuite(path)
	assert.Error(t, err)
}

func TestLoadTestSuite_DefaultsNameToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nameless.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: []\n"), 0o644))

	suite, err := LoadTestSuite(path)
	require.NoError(t, err)
	assert.Equal(t, "nameless", suite.Name)
}

func TestRunSuite_ReportsFailedExpectation(t *testing.T) {
	r := newInProcessRunner(t)
	wrong := story.NodeID("askCaptain")

	suite := TestSuite{
		Name: "wrong scene",
		Steps: []TestStep{
			{Name: "salt", Action: "choose", To: "askAlbularyo", Expectations: Expectations{Scene: &wrong}},
			{Name: "church", Action: "choose", To: "oldChurch_entry"},
		},
	}

	result, err := r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	require.Len(t, result.Results, 2, "continue mode runs every step")
	assert.False(t, result.Results[0].Success)
	assert.True(t, result.Results[1].Success)

	r.ErrorHandlingMode = ErrorHandlingExit
	result, err = r.RunSuite(context.Background(), suite)
	require.Error(t, err)
	assert.Len(t, result.Results, 1)
}

func TestCheckExpectations(t *testing.T) {
	conflict := http.StatusConflict
	code := "path_not_found"

	err := checkExpectations(Expectations{}, &APIResponse{Status: http.StatusConflict, Error: &handlers.ErrorResponse{Error: "nope"}})
	assert.ErrorContains(t, err, "expected status 200, got 409")

	err = checkExpectations(Expectations{Status: &conflict}, &APIResponse{Status: http.StatusConflict, Error: &handlers.ErrorResponse{Error: "nope"}})
	assert.NoError(t, err)

	err = checkExpectations(Expectations{Status: &conflict, ErrorCode: &code}, &APIResponse{Status: http.StatusConflict, Error: &handlers.ErrorResponse{Error: "nope"}})
	assert.ErrorContains(t, err, "expected error code")

	yes := true
	err = checkExpectations(Expectations{Status: &conflict, Died: &yes}, &APIResponse{Status: http.StatusConflict})
	assert.ErrorContains(t, err, "expected a game view")
}
