package core

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusion-engineering/git-version/internal/gittest"
)

var shortHash = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

func TestExpander_SingleCommitIsShortHash(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")

	v, err := NewExpander(Options{}).Describe(context.Background(), repo.Dir)
	require.NoError(t, err)
	assert.Regexp(t, shortHash, v.Raw)
	assert.Equal(t, repo.ShortHead(), v.Raw)
}

func TestExpander_MatchesReferenceCommand(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")
	repo.Tag("v1.0.0")
	repo.WriteFile("README", "hello again\n")
	repo.Commit("second")

	exp := NewExpander(Options{})
	v, err := exp.Describe(context.Background(), repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, repo.Git("describe", "--always", "--dirty=-modified"), v.Raw)
	assert.Regexp(t, `^v1\.0\.0-1-g[0-9a-f]+$`, v.Raw)
}

func TestExpander_ModifiedTrackedFileIsDirty(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")
	repo.Tag("v1.0.0")
	repo.WriteFile("README", "changed\n")

	v, err := NewExpander(Options{}).Describe(context.Background(), repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0-modified", v.Raw)

	v, err = NewExpander(Options{DirtySuffix: "-dirty"}).Describe(context.Background(), repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0-dirty", v.Raw)
}

func TestExpander_UntrackedFileIsNotDirty(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")
	repo.WriteFile("untracked.txt", "new\n")

	v, err := NewExpander(Options{}).Describe(context.Background(), repo.Dir)
	require.NoError(t, err)
	assert.Equal(t, repo.ShortHead(), v.Raw)
	assert.Equal(t, repo.Git("describe", "--always", "--dirty=-modified"), v.Raw)
}

func TestExpander_PassThroughArgs(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")
	repo.Tag("v2.0.0")
	repo.WriteFile("README", "more\n")
	repo.Commit("second")

	exp := NewExpander(Options{})
	v, err := exp.DescribeArgs(context.Background(), repo.Dir, []string{"--abbrev=0"})
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", v.Raw)

	repo.WriteFile("README", "dirty\n")
	v, err = exp.DescribeArgs(context.Background(), repo.Dir, []string{"--abbrev=0", "--dirty=-wip"})
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0-wip", v.Raw)
}

func TestExpander_PassThroughFailureIsProcessError(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")

	// No tags and no --always.
	_, err := NewExpander(Options{}).DescribeArgs(context.Background(), repo.Dir, nil)
	require.ErrorIs(t, err, ErrProcessFailed)
	assert.Contains(t, err.Error(), "git describe exited with status 128")
}

func TestExpander_DeclareEscapes(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")
	repo.Tag("v1")

	exp := NewExpander(Options{Prefix: `say "`, Suffix: `\`})
	d, err := exp.Declare(context.Background(), repo.Dir, "Version", nil)
	require.NoError(t, err)
	assert.Equal(t, "Version", d.Name)
	assert.Equal(t, []string{"describe", "--always", "--dirty=-modified"}, d.Args)

	got, err := strconv.Unquote(d.Version.Literal())
	require.NoError(t, err)
	assert.Equal(t, `say "v1\`, got)

	_, err = exp.Declare(context.Background(), repo.Dir, "not-an-ident", nil)
	assert.Error(t, err)
}

func TestExpander_SubmoduleVersions(t *testing.T) {
	a := gittest.New(t)
	a.WriteFile("a.txt", "a\n")
	a.Commit("a")
	a.Tag("a-v0.1.0")

	b := gittest.New(t)
	b.WriteFile("b.txt", "b\n")
	b.Commit("b")

	top := gittest.New(t)
	top.WriteFile("README", "top\n")
	top.Commit("initial")
	top.AddSubmodule(b, "libs/b")
	top.AddSubmodule(a, "libs/a")

	var set PathSet
	exp := NewExpander(Options{Registrar: &set})

	entries, err := exp.SubmoduleVersions(context.Background(), top.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "libs/a", entries[0].Path)
	assert.Equal(t, "a-v0.1.0", entries[0].Version.Raw)
	assert.Equal(t, "libs/b", entries[1].Path)
	assert.Equal(t, gittest.Run(t, filepath.Join(top.Dir, "libs", "b"), "describe", "--always", "--dirty=-modified"), entries[1].Version.Raw)
	assert.Contains(t, set.Paths(), filepath.Join(top.Dir, ".git", "modules", "libs", "a", "HEAD"))
	assert.Contains(t, set.Paths(), filepath.Join(top.Dir, ".gitmodules"))

	top.Deinit("libs/b")
	entries, err = exp.SubmoduleVersions(context.Background(), top.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "libs/a", entries[0].Path)
	assert.Equal(t, "a-v0.1.0", entries[0].Version.Raw)
}

// failingRunner delegates to the real tool but fails describe in any
// directory ending in failDir.
type failingRunner struct {
	CommandRunner
	failDir string
}

func (r failingRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if strings.HasSuffix(filepath.ToSlash(dir), "/"+r.failDir) && len(args) > 0 && args[0] == "describe" {
		return "", &Error{Kind: ErrProcessFailed, Tool: "git", Args: args, Dir: dir, ExitCode: 128, Stderr: "fatal: cannot describe"}
	}
	return r.CommandRunner.Run(ctx, dir, args...)
}

func TestExpander_SubmoduleDescribeFailure(t *testing.T) {
	a := gittest.New(t)
	a.WriteFile("a.txt", "a\n")
	a.Commit("a")
	b := gittest.New(t)
	b.WriteFile("b.txt", "b\n")
	b.Commit("b")

	top := gittest.New(t)
	top.WriteFile("README", "top\n")
	top.Commit("initial")
	top.AddSubmodule(a, "libs/a")
	top.AddSubmodule(b, "libs/b")

	runner := failingRunner{
		CommandRunner: NewExecutor("", logr.Discard()),
		failDir:       "libs/b",
	}
	exp := NewExpander(Options{Runner: runner})

	_, err := exp.SubmoduleVersions(context.Background(), top.Dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmoduleDescribeFailed)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.Contains(t, err.Error(), "libs/b")
	assert.Contains(t, err.Error(), "git describe exited with status 128: fatal: cannot describe")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "libs/b", e.Path)
}

func TestExpander_NoSubmodules(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")

	entries, err := NewExpander(Options{}).SubmoduleVersions(context.Background(), repo.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExpander_Fallback(t *testing.T) {
	gittest.Isolate(t)
	dir := canonicalTempDir(t)
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := NewExpander(Options{}).Describe(context.Background(), dir)
	require.ErrorIs(t, err, ErrNotARepository)

	fallback := "unknown"
	var set PathSet
	v, err := NewExpander(Options{Fallback: &fallback, Registrar: &set}).Describe(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "unknown", v.Raw)
	assert.Empty(t, set.Paths())
}

func TestExpander_RepeatedCallsAreIdentical(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("README", "hello\n")
	repo.Commit("initial")
	repo.Tag("v3")

	var first, second PathSet
	v1, err := NewExpander(Options{Registrar: &first}).Describe(context.Background(), repo.Dir)
	require.NoError(t, err)
	v2, err := NewExpander(Options{Registrar: &second}).Describe(context.Background(), repo.Dir)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, first.Paths(), second.Paths())
	assert.Contains(t, first.Paths(), filepath.Join(repo.Dir, ".git", "HEAD"))
	assert.Contains(t, first.Paths(), filepath.Join(repo.Dir, ".git", "refs", "tags", "v3"))

	paths, err := NewExpander(Options{}).Triggers(context.Background(), repo.Dir, false)
	require.NoError(t, err)
	assert.Equal(t, first.Paths(), paths)
}
