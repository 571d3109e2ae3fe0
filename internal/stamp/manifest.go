// Package stamp records what a generated file was derived from, so a later
// build can tell whether the file is stale without re-running the tool.
package stamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// FormatVersion identifies the manifest layout.
const FormatVersion = 1

// Manifest is the stamp written next to a generated file.
//
// It holds no timestamps or host details: regenerating from an unchanged tree
// produces byte-identical JSON.
type Manifest struct {
	Format int `json:"format"`

	// Dir is the directory the expansion started from.
	Dir string `json:"dir"`

	// Output is the generated file and OutputHash its fingerprint.
	Output     string `json:"output"`
	OutputHash string `json:"outputHash"`

	// Submodules records whether submodule triggers were part of the set.
	Submodules bool `json:"submodules,omitempty"`

	Triggers []Trigger `json:"triggers"`
}

// Trigger is one rebuild-trigger path and its fingerprint at generation time.
type Trigger struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Validate checks the invariants Load relies on.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.New("manifest is nil")
	}
	if m.Format != FormatVersion {
		return fmt.Errorf("unsupported manifest format %d", m.Format)
	}
	if m.Output == "" {
		return errors.New("output is required")
	}
	for i, t := range m.Triggers {
		if t.Path == "" {
			return fmt.Errorf("triggers[%d].path is required", i)
		}
		if t.Hash == "" {
			return fmt.Errorf("triggers[%d].hash is required", i)
		}
	}
	return nil
}

// Canonicalize sorts triggers by path and drops duplicates.
func (m *Manifest) Canonicalize() {
	sort.SliceStable(m.Triggers, func(i, j int) bool { return m.Triggers[i].Path < m.Triggers[j].Path })
	out := m.Triggers[:0]
	for _, t := range m.Triggers {
		if len(out) > 0 && out[len(out)-1].Path == t.Path {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		out = nil
	}
	m.Triggers = out
}

// CanonicalJSON encodes a canonicalized copy of m.
func (m Manifest) CanonicalJSON() ([]byte, error) {
	cp := m
	cp.Triggers = append([]Trigger(nil), m.Triggers...)
	cp.Canonicalize()
	if cp.Triggers == nil {
		cp.Triggers = []Trigger{}
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Paths returns the trigger paths in manifest order.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Triggers))
	for i, t := range m.Triggers {
		out[i] = t.Path
	}
	return out
}
