package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusion-engineering/git-version/internal/gittest"
)

func TestResolveGitDir_Directory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	gitDir, commonDir, err := ResolveGitDir(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".git"), gitDir)
	assert.Equal(t, gitDir, commonDir)
}

func TestResolveGitDir_PointerAndCommondir(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "wt")
	meta := filepath.Join(base, "main", ".git", "worktrees", "wt")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(meta, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: ../main/.git/worktrees/wt\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(meta, "commondir"), []byte("../..\n"), 0o644))

	gitDir, commonDir, err := ResolveGitDir(root)
	require.NoError(t, err)
	assert.Equal(t, meta, gitDir)
	assert.Equal(t, filepath.Join(base, "main", ".git"), commonDir)
}

func TestResolveGitDir_BadPointer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("nonsense\n"), 0o644))

	_, _, err := ResolveGitDir(root)
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestResolveGitDir_Missing(t *testing.T) {
	_, _, err := ResolveGitDir(t.TempDir())
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestLocator_FindRootFromSubdirAndFile(t *testing.T) {
	repo := gittest.New(t)
	repo.WriteFile("pkg/inner/file.go", "package inner\n")
	l := NewLocator(NewExecutor("", logr.Discard()))

	root, err := l.FindRoot(context.Background(), filepath.Join(repo.Dir, "pkg", "inner"))
	require.NoError(t, err)
	assert.Equal(t, repo.Dir, root)

	root, err = l.FindRoot(context.Background(), filepath.Join(repo.Dir, "pkg", "inner", "file.go"))
	require.NoError(t, err)
	assert.Equal(t, repo.Dir, root)
}

func TestLocator_OutsideRepository(t *testing.T) {
	gittest.Isolate(t)
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	l := NewLocator(NewExecutor("", logr.Discard()))

	_, err := l.FindRoot(context.Background(), dir)
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestLocator_ToolNotFoundIsNotMasked(t *testing.T) {
	l := NewLocator(NewExecutor("gitversion-test-no-such-tool", logr.Discard()))

	_, err := l.FindRoot(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.NotErrorIs(t, err, ErrNotARepository)
}
