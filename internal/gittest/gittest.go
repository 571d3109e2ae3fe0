// Package gittest creates throwaway repositories for tests. Every helper
// fails the test on error and skips it when git is not installed.
package gittest

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Repo is a repository in a temporary directory.
type Repo struct {
	t   testing.TB
	Dir string
}

// Isolate points git at an empty global config so that user settings do not
// leak into tests. It also applies to the code under test, which inherits the
// process environment.
func Isolate(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_AUTHOR_NAME", "gittest")
	t.Setenv("GIT_AUTHOR_EMAIL", "gittest@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "gittest")
	t.Setenv("GIT_COMMITTER_EMAIL", "gittest@example.com")
}

// New initializes an empty repository with branch main.
func New(t testing.TB) *Repo {
	t.Helper()
	Isolate(t)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	r := &Repo{t: t, Dir: dir}
	r.Git("-c", "init.defaultBranch=main", "init", "-q")
	return r
}

// Git runs git in the repository and returns its trimmed stdout.
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	return Run(r.t, r.Dir, args...)
}

// Run runs git in dir and returns its trimmed stdout.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimRight(stdout.String(), "\n")
}

// WriteFile writes content to rel, creating parent directories.
func (r *Repo) WriteFile(rel, content string) {
	r.t.Helper()
	path := filepath.Join(r.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
}

// Commit stages everything and commits. It returns the full commit hash.
func (r *Repo) Commit(msg string) string {
	r.t.Helper()
	r.Git("add", "-A")
	r.Git("-c", "commit.gpgsign=false", "commit", "-q", "--allow-empty", "-m", msg)
	return r.Git("rev-parse", "HEAD")
}

// Tag creates an annotated tag at HEAD. Plain describe ignores lightweight tags.
func (r *Repo) Tag(name string) {
	r.t.Helper()
	r.Git("-c", "tag.gpgsign=false", "tag", "-a", name, "-m", name)
}

// ShortHead returns the abbreviated HEAD hash as describe prints it.
func (r *Repo) ShortHead() string {
	r.t.Helper()
	return r.Git("rev-parse", "--short", "HEAD")
}

// AddSubmodule adds sub at path and commits the result.
func (r *Repo) AddSubmodule(sub *Repo, path string) {
	r.t.Helper()
	r.Git("-c", "protocol.file.allow=always", "submodule", "add", sub.Dir, path)
	r.Commit("add " + path)
}

// Deinit removes the working tree of the submodule at path.
func (r *Repo) Deinit(path string) {
	r.t.Helper()
	r.Git("submodule", "deinit", "-f", path)
}
