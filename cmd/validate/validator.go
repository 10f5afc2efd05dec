package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/branch-engine/pkg/story"
)

var (
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validNodeIDRegex   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	validItemRegex     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ '-]*$`)
)

// StoryValidator checks a story file more strictly than the loader: unknown
// keys are rejected and ids must follow the naming convention.
type StoryValidator struct {
	EntryID    story.NodeID
	GameOverID story.NodeID

	errors []string
}

// ValidateFile returns lint warnings and an error listing every problem found.
func (v *StoryValidator) ValidateFile(filename string) ([]string, error) {
	v.errors = nil

	format, err := story.FormatFromPath(filename)
	if err != nil {
		return nil, err
	}

	id := story.IDFromPath(filename)
	if !validFilenameRegex.MatchString(id) {
		return nil, fmt.Errorf("story filename '%s' must be lowercase snake_case (e.g., my_story.json, not my-story.json or MyStory.json)", filepath.Base(filename))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	nodes, err := story.DecodeNodes(data, format, true)
	if err != nil {
		return nil, fmt.Errorf("file %s failed strict decoding: %w", filename, err)
	}

	v.validateNames(nodes)

	var opts []story.Option
	if v.EntryID != "" {
		opts = append(opts, story.WithEntry(v.EntryID))
	}
	if v.GameOverID != "" {
		opts = append(opts, story.WithGameOver(v.GameOverID))
	}
	g, err := story.NewGraph(id, nodes, opts...)
	if err != nil {
		var verr *story.ValidationError
		if errors.As(err, &verr) && len(verr.Problems) > 0 {
			v.errors = append(v.errors, verr.Problems...)
		} else {
			v.addError(err.Error())
		}
	}

	if len(v.errors) > 0 {
		return nil, fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	var warnings []string
	for _, f := range story.Lint(g) {
		warnings = append(warnings, f.String())
	}
	return warnings, nil
}

func (v *StoryValidator) validateNames(nodes map[story.NodeID]*story.Node) {
	ids := make([]story.NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if !validNodeIDRegex.MatchString(string(id)) {
			v.addError(fmt.Sprintf("node ID '%s' must start with a letter and contain only letters, digits and underscores", id))
		}
		n := nodes[id]
		if n == nil {
			continue
		}
		if strings.TrimSpace(n.Text) == "" {
			v.addError(fmt.Sprintf("node '%s' has no text", id))
		}
		if item := n.GrantedItem(); item != "" {
			v.validateItem(string(id), "addItem", item)
		}
		for i, c := range n.Choices {
			if strings.TrimSpace(c.Text) == "" {
				v.addError(fmt.Sprintf("node '%s' choice %d has no text", id, i))
			}
			if c.Requires != "" {
				v.validateItem(string(id), "requires", c.Requires)
			}
			if c.HideIf != "" {
				v.validateItem(string(id), "hideIf", c.HideIf)
			}
		}
	}
}

func (v *StoryValidator) validateItem(nodeID, field string, item story.ItemID) {
	if !validItemRegex.MatchString(string(item)) {
		v.addError(fmt.Sprintf("node '%s' %s item '%s' is not a valid item name", nodeID, field, item))
	}
}

func (v *StoryValidator) addError(msg string) {
	v.errors = append(v.errors, msg)
}
