package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// Submodule is one configured sub-repository as reported by the tool.
type Submodule struct {
	// Path is relative to the repository root, slash-separated.
	Path string

	// Initialized is false when the tool reports the submodule as not
	// initialized.
	Initialized bool
}

// SubmoduleEntry pairs a submodule path with its described version.
type SubmoduleEntry struct {
	Path    string
	Version Version
}

// submoduleStatusArgs lists every configured submodule, nested ones included,
// with paths relative to the directory the command runs in.
var submoduleStatusArgs = []string{"-c", "core.quotePath=false", "submodule", "status", "--recursive"}

// ListSubmodules returns the configured submodules of root in path order.
func ListSubmodules(ctx context.Context, r CommandRunner, root string) ([]Submodule, error) {
	out, err := r.Run(ctx, root, submoduleStatusArgs...)
	if err != nil {
		return nil, err
	}
	subs, err := parseSubmoduleStatus(out)
	if err != nil {
		return nil, &Error{Kind: ErrMalformedOutput, Tool: toolName(r), Args: submoduleStatusArgs, Dir: root, ExitCode: -1, Err: err}
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Path < subs[j].Path })
	return subs, nil
}

// parseSubmoduleStatus parses `submodule status` lines of the form
//
//	<flag><commit> <path>[ (<describe>)]
//
// where flag is ' ', '+', 'U' or '-' (not initialized).
func parseSubmoduleStatus(out string) ([]Submodule, error) {
	var subs []Submodule
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if len(line) < 3 {
			return nil, fmt.Errorf("line %d: too short: %q", i+1, line)
		}
		flag, rest := line[0], line[1:]
		sp := strings.IndexByte(rest, ' ')
		if sp <= 0 || sp == len(rest)-1 {
			return nil, fmt.Errorf("line %d: missing path: %q", i+1, line)
		}
		path := rest[sp+1:]
		if strings.HasSuffix(path, ")") {
			if p := strings.LastIndex(path, " ("); p > 0 {
				path = path[:p]
			}
		}
		subs = append(subs, Submodule{
			Path:        unquotePath(path),
			Initialized: flag != '-',
		})
	}
	return subs, nil
}

// unquotePath undoes the C-style quoting the tool applies to unusual paths.
func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		if u, err := strconv.Unquote(p); err == nil {
			return u
		}
	}
	return p
}

// populated reports whether the submodule working directory exists and has
// its own metadata entry.
func populated(root, rel string) bool {
	dir := filepath.Join(root, filepath.FromSlash(rel))
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Enumerator describes every initialized submodule of a repository.
type Enumerator struct {
	Runner    CommandRunner
	Formatter *Formatter
	Log       logr.Logger
}

// Initialized returns the submodules of root that can be described.
// Uninitialized or unpopulated submodules are skipped without error.
func (e *Enumerator) Initialized(ctx context.Context, root string) ([]Submodule, error) {
	subs, err := ListSubmodules(ctx, e.Runner, root)
	if err != nil {
		return nil, err
	}
	ready := subs[:0]
	for _, s := range subs {
		if !s.Initialized || !populated(root, s.Path) {
			e.Log.V(1).Info("skipping uninitialized submodule", "path", s.Path)
			continue
		}
		ready = append(ready, s)
	}
	return ready, nil
}

// Versions describes each initialized submodule in its own root with the
// default arguments. Pass-through arguments never apply to submodules.
func (e *Enumerator) Versions(ctx context.Context, root string) ([]SubmoduleEntry, error) {
	subs, err := e.Initialized(ctx, root)
	if err != nil {
		return nil, err
	}
	entries := make([]SubmoduleEntry, 0, len(subs))
	for _, s := range subs {
		dir := filepath.Join(root, filepath.FromSlash(s.Path))
		v, err := e.Formatter.Describe(ctx, dir, nil, "")
		if err != nil {
			return nil, &Error{Kind: ErrSubmoduleDescribeFailed, Path: s.Path, ExitCode: -1, Err: err}
		}
		entries = append(entries, SubmoduleEntry{Path: s.Path, Version: v})
	}
	return entries, nil
}
