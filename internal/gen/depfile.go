package gen

import (
	"bytes"
	"strings"
)

// Depfile collects rebuild triggers for one target and renders them as a
// Make rule (`target: dep dep ...`), the format make and ninja read with
// `-include` / `depfile =`.
type Depfile struct {
	Target string
	deps   []string
	seen   map[string]bool
}

// NewDepfile creates an empty depfile for target.
func NewDepfile(target string) *Depfile {
	return &Depfile{Target: target, seen: make(map[string]bool)}
}

// Register adds path as a prerequisite. Repeated paths are kept once, in
// first-registration order.
func (d *Depfile) Register(path string) error {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[path] {
		return nil
	}
	d.seen[path] = true
	d.deps = append(d.deps, path)
	return nil
}

// Deps returns the registered prerequisites.
func (d *Depfile) Deps() []string {
	return append([]string(nil), d.deps...)
}

// Bytes renders the rule, one prerequisite per continuation line.
func (d *Depfile) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString(escapeMake(d.Target))
	b.WriteByte(':')
	for _, dep := range d.deps {
		b.WriteString(" \\\n  ")
		b.WriteString(escapeMake(dep))
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// Write stores the rule at path if it changed.
func (d *Depfile) Write(path string) error {
	_, err := WriteIfChanged(path, d.Bytes(), 0o644)
	return err
}

var makeEscaper = strings.NewReplacer(" ", `\ `, "#", `\#`, "$", "$$", "\t", "\\\t")

func escapeMake(s string) string {
	return makeEscaper.Replace(s)
}
