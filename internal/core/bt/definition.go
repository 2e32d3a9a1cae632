package bt

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is the exported form of one behavior tree, as produced by an
// editor or written by hand.
type Definition struct {
	ID   string    `json:"id" yaml:"id"`
	Root *NodeSpec `json:"root" yaml:"root"`
}

// NodeSpec describes one node of a Definition.
type NodeSpec struct {
	ID       string           `json:"id,omitempty" yaml:"id,omitempty"`
	Kind     string           `json:"kind" yaml:"kind"`
	Props    map[string]any   `json:"props,omitempty" yaml:"props,omitempty"`
	Children []*NodeSpec      `json:"children,omitempty" yaml:"children,omitempty"`
	Pre      []AttachmentSpec `json:"pre,omitempty" yaml:"pre,omitempty"`
	Post     []AttachmentSpec `json:"post,omitempty" yaml:"post,omitempty"`
	Events   []EventSpec      `json:"events,omitempty" yaml:"events,omitempty"`
}

// AttachmentSpec is a pre or post hook. The operator selects the class:
// empty or "none" calls the left operand, "assign" stores right2 into left,
// add/sub/mul/div compute left := right1 op right2 (right1 defaults to left)
// and eq/ne/lt/le/gt/ge compare left with right2.
type AttachmentSpec struct {
	Left     any    `json:"left,omitempty" yaml:"left,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Right1   any    `json:"right1,omitempty" yaml:"right1,omitempty"`
	Right2   any    `json:"right2,omitempty" yaml:"right2,omitempty"`
	// Phase is enter|update|both for pre hooks and success|failure|both for post hooks.
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`
	// Combine chains a pre hook with the previous ones: and (default) or or.
	Combine string `json:"combine,omitempty" yaml:"combine,omitempty"`
}

// EventSpec reacts to an event fired while the owning node is running.
type EventSpec struct {
	Name string `json:"name" yaml:"name"`
	// Param names the property that receives the event payload.
	Param   string `json:"param,omitempty" yaml:"param,omitempty"`
	Restart bool   `json:"restart,omitempty" yaml:"restart,omitempty"`
}

// LoadJSON decodes a definition from JSON.
func LoadJSON(r io.Reader) (*Definition, error) {
	var d Definition
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadYAML decodes a definition from YAML.
func LoadYAML(r io.Reader) (*Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile picks the decoder by extension (.json, otherwise YAML). A missing
// id defaults to the file name without extension.
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var d *Definition
	if strings.EqualFold(filepath.Ext(path), ".json") {
		d, err = LoadJSON(f)
	} else {
		d, err = LoadYAML(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if d.ID == "" {
		d.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}
