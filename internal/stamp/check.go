package stamp

import (
	"errors"
	"io/fs"
	"os"
	"sort"
)

// ReasonKind says why a generated file is stale. The values appear in CLI
// output; do not rename.
type ReasonKind string

const (
	ReasonOutputMissing  ReasonKind = "OutputMissing"
	ReasonOutputChanged  ReasonKind = "OutputChanged"
	ReasonTriggerAdded   ReasonKind = "TriggerAdded"
	ReasonTriggerRemoved ReasonKind = "TriggerRemoved"
	ReasonTriggerChanged ReasonKind = "TriggerChanged"
)

// Reason is one detected difference.
type Reason struct {
	Kind ReasonKind
	Path string
}

// Report is the result of Check. The output is fresh when Reasons is empty.
type Report struct {
	Reasons []Reason
}

// Stale reports whether any difference was found.
func (r Report) Stale() bool { return len(r.Reasons) > 0 }

// Check compares m against the current trigger set and the files on disk.
// Reasons are sorted by path, then kind.
func Check(m *Manifest, current []string) (Report, error) {
	var rep Report

	out, err := os.ReadFile(m.Output)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rep.Reasons = append(rep.Reasons, Reason{Kind: ReasonOutputMissing, Path: m.Output})
	case err != nil:
		return Report{}, err
	case HashBytes(out) != m.OutputHash:
		rep.Reasons = append(rep.Reasons, Reason{Kind: ReasonOutputChanged, Path: m.Output})
	}

	recorded := make(map[string]string, len(m.Triggers))
	for _, t := range m.Triggers {
		recorded[t.Path] = t.Hash
	}
	now := make(map[string]bool, len(current))
	for _, p := range current {
		now[p] = true
		old, ok := recorded[p]
		if !ok {
			rep.Reasons = append(rep.Reasons, Reason{Kind: ReasonTriggerAdded, Path: p})
			continue
		}
		h, err := HashPath(p)
		if errors.Is(err, fs.ErrNotExist) {
			rep.Reasons = append(rep.Reasons, Reason{Kind: ReasonTriggerRemoved, Path: p})
			continue
		}
		if err != nil {
			return Report{}, err
		}
		if h != old {
			rep.Reasons = append(rep.Reasons, Reason{Kind: ReasonTriggerChanged, Path: p})
		}
	}
	for _, t := range m.Triggers {
		if !now[t.Path] {
			rep.Reasons = append(rep.Reasons, Reason{Kind: ReasonTriggerRemoved, Path: t.Path})
		}
	}

	sort.SliceStable(rep.Reasons, func(i, j int) bool {
		a, b := rep.Reasons[i], rep.Reasons[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Kind < b.Kind
	})
	return rep, nil
}
