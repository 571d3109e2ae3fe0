package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Locator finds repository roots by asking the tool for the top-level
// directory of the working tree containing a start path.
type Locator struct {
	Runner CommandRunner
}

// NewLocator creates a Locator backed by r.
func NewLocator(r CommandRunner) *Locator {
	return &Locator{Runner: r}
}

// FindRoot returns the absolute root of the working tree that contains start.
//
// Any failure other than ErrToolNotFound is reported as ErrNotARepository,
// with the tool error as cause.
func (l *Locator) FindRoot(ctx context.Context, start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", &Error{Kind: ErrNotARepository, Path: start, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &Error{Kind: ErrNotARepository, Path: abs, Err: err}
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	out, err := l.Runner.Run(ctx, abs, "rev-parse", "--show-toplevel")
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return "", err
		}
		return "", &Error{Kind: ErrNotARepository, Path: abs, Err: err}
	}
	if out == "" {
		return "", &Error{Kind: ErrNotARepository, Path: abs, Err: errors.New("no working tree")}
	}
	return filepath.Clean(filepath.FromSlash(out)), nil
}

// ResolveGitDir returns the metadata directory of the working tree at root and
// the common directory holding refs and packed-refs.
//
// Both indirections are followed without invoking the tool: a `.git` file
// containing `gitdir: <path>` (submodules, linked worktrees) and a `commondir`
// file inside the metadata directory (linked worktrees). Relative targets are
// resolved against the file that names them.
func ResolveGitDir(root string) (gitDir, commonDir string, err error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", "", &Error{Kind: ErrNotARepository, Path: root, Err: err}
	}

	gitDir = dotGit
	if !info.IsDir() {
		target, err := readPointer(dotGit, "gitdir:")
		if err != nil {
			return "", "", &Error{Kind: ErrNotARepository, Path: root, Err: err}
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, target)
		}
		gitDir = filepath.Clean(target)
	}

	commonDir = gitDir
	if data, err := os.ReadFile(filepath.Join(gitDir, "commondir")); err == nil {
		c := filepath.FromSlash(strings.TrimSpace(string(data)))
		if c != "" {
			if !filepath.IsAbs(c) {
				c = filepath.Join(gitDir, c)
			}
			commonDir = filepath.Clean(c)
		}
	}

	return gitDir, commonDir, nil
}

// readPointer reads the first line of path and returns the text after prefix.
func readPointer(path, prefix string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return "", fmt.Errorf("%s: empty pointer file", path)
	}
	line := strings.TrimSpace(sc.Text())
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("%s: missing %q line", path, prefix)
	}
	target := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if target == "" {
		return "", fmt.Errorf("%s: empty %q target", path, prefix)
	}
	return filepath.FromSlash(target), nil
}
