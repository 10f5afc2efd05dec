package story

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of authored story content.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported story file extension: %s", filepath.Ext(path))
	}
}

// IDFromPath derives a story id from its file name, e.g. "san_gubat.json" -> "san_gubat".
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// The wire types accept the aliases found in authored content: "damage" for
// "takeDamage" and "jumpscare" for "jumpScare" (JSON keys already match
// case-insensitively, YAML keys do not).
type wireChoice struct {
	Text     string `json:"text" yaml:"text"`
	To       NodeID `json:"to" yaml:"to"`
	Requires ItemID `json:"requires" yaml:"requires"`
	HideIf   ItemID `json:"hideIf" yaml:"hideIf"`
}

type wireOnArrive struct {
	AddItem    ItemID `json:"addItem" yaml:"addItem"`
	TakeDamage *int   `json:"takeDamage" yaml:"takeDamage"`
	Damage     *int   `json:"damage" yaml:"damage"`
}

type wireNode struct {
	Text         string        `json:"text" yaml:"text"`
	Choices      []wireChoice  `json:"choices" yaml:"choices"`
	OnArrive     *wireOnArrive `json:"onArrive" yaml:"onArrive"`
	IsEnding     bool          `json:"isEnding" yaml:"isEnding"`
	JumpScare    *Jumpscare    `json:"jumpScare" yaml:"jumpScare"`
	JumpscareAlt *Jumpscare    `json:"-" yaml:"jumpscare"`
}

func (w *wireNode) toNode(id NodeID) (*Node, error) {
	n := &Node{
		ID:       id,
		Text:     w.Text,
		IsEnding: w.IsEnding,
	}
	for _, c := range w.Choices {
		n.Choices = append(n.Choices, Choice(c))
	}

	switch {
	case w.JumpScare != nil:
		n.Jumpscare = w.JumpScare
	case w.JumpscareAlt != nil:
		n.Jumpscare = w.JumpscareAlt
	}

	if w.OnArrive != nil {
		oa := &OnArrive{AddItem: w.OnArrive.AddItem}
		switch {
		case w.OnArrive.TakeDamage != nil && w.OnArrive.Damage != nil && *w.OnArrive.TakeDamage != *w.OnArrive.Damage:
			return nil, fmt.Errorf("node %q sets both takeDamage and damage to different values", id)
		case w.OnArrive.TakeDamage != nil:
			oa.Damage = *w.OnArrive.TakeDamage
		case w.OnArrive.Damage != nil:
			oa.Damage = *w.OnArrive.Damage
		}
		n.OnArrive = oa
	}
	return n, nil
}

// DecodeNodes parses authored content into nodes without validating the graph
// shape. With strict set, unknown keys are rejected.
func DecodeNodes(data []byte, format Format, strict bool) (map[NodeID]*Node, error) {
	raw := make(map[NodeID]*wireNode)

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode story JSON: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode story YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported story format %q", format)
	}

	nodes := make(map[NodeID]*Node, len(raw))
	for id, w := range raw {
		if w == nil {
			nodes[id] = nil
			continue
		}
		n, err := w.toNode(id)
		if err != nil {
			return nil, err
		}
		nodes[id] = n
	}
	return nodes, nil
}

// Parse decodes and validates a story graph.
func Parse(name string, data []byte, format Format, opts ...Option) (*Graph, error) {
	nodes, err := DecodeNodes(data, format, false)
	if err != nil {
		return nil, err
	}
	return NewGraph(name, nodes, opts...)
}

// LoadFile reads a story from a .json, .yaml or .yml file. The file name
// (without extension) becomes the story name.
func LoadFile(path string, opts ...Option) (*Graph, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file %s: %w", path, err)
	}
	g, err := Parse(IDFromPath(path), data, format, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load story %s: %w", path, err)
	}
	return g, nil
}
