package story

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// DefaultStoryID names the story bundled with the engine.
const DefaultStoryID = "san_gubat"

//go:embed content/*.json
var bundled embed.FS

var (
	defaultOnce  sync.Once
	defaultGraph *Graph
	defaultErr   error
)

// Default returns the bundled San Gubat story. The graph is parsed once and shared.
func Default() (*Graph, error) {
	defaultOnce.Do(func() {
		defaultGraph, defaultErr = Bundled(DefaultStoryID)
	})
	return defaultGraph, defaultErr
}

// MustDefault is Default that panics on error.
func MustDefault() *Graph {
	g, err := Default()
	if err != nil {
		panic(err)
	}
	return g
}

// Bundled parses a story shipped inside the binary.
func Bundled(id string) (*Graph, error) {
	data, err := bundled.ReadFile("content/" + id + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: bundled story %q", fs.ErrNotExist, id)
	}
	return Parse(id, data, FormatJSON)
}

// BundledIDs lists the stories shipped inside the binary.
func BundledIDs() []string {
	entries, err := fs.ReadDir(bundled, "content")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, IDFromPath(e.Name()))
	}
	sort.Strings(ids)
	return ids
}
