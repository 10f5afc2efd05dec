package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/jwebster45206/branch-engine/pkg/storage"
	"github.com/jwebster45206/branch-engine/pkg/story"
	"github.com/jwebster45206/branch-engine/pkg/textfilter"
)

var storyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var storyExtensions = []string{".json", ".yaml", ".yml"}

// StoryLibrary loads stories from <dataDir>/stories and falls back to the
// bundled content. Parsed graphs are cached; they are immutable.
type StoryLibrary struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*story.Graph
}

// NewStoryLibrary creates a library rooted at dataDir
func NewStoryLibrary(dataDir string, logger *slog.Logger) *StoryLibrary {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &StoryLibrary{
		dir:    filepath.Join(dataDir, "stories"),
		logger: logger,
		cache:  make(map[string]*story.Graph),
	}
}

// Story operations (filesystem-backed)

func (l *StoryLibrary) ListStories(ctx context.Context) (map[string]string, error) {
	stories := make(map[string]string)
	for _, id := range story.BundledIDs() {
		stories[id] = textfilter.Title(id)
	}

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := story.FormatFromPath(path); ferr != nil {
			return nil
		}
		id := story.IDFromPath(path)
		if !storyIDPattern.MatchString(id) {
			l.logger.Warn("Skipping story with invalid id", "path", path)
			return nil
		}
		if _, err := l.GetStory(ctx, id); err != nil {
			l.logger.Warn("Skipping invalid story file", "path", path, "error", err)
			return nil
		}
		stories[id] = textfilter.Title(id)
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to walk stories directory", "error", err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	return stories, nil
}

func (l *StoryLibrary) GetStory(ctx context.Context, id string) (*story.Graph, error) {
	if !storyIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", storage.ErrStoryNotFound, id)
	}

	l.mu.RLock()
	g, ok := l.cache[id]
	l.mu.RUnlock()
	if ok {
		return g, nil
	}

	g, err := l.load(id)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[id] = g
	l.mu.Unlock()
	return g, nil
}

func (l *StoryLibrary) load(id string) (*story.Graph, error) {
	for _, ext := range storyExtensions {
		path := filepath.Join(l.dir, id+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l.logger.Debug("Loading story", "id", id, "path", path)
		g, err := story.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load story %s: %w", id, err)
		}
		return g, nil
	}

	g, err := story.Bundled(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrStoryNotFound, id)
		}
		return nil, err
	}
	return g, nil
}
