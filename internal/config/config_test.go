package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t.TempDir(), "", env(nil))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, FileName), `
dirty_suffix: -file
prefix: file-
package: version
args: ["--tags"]
`)
	write(t, filepath.Join(dir, ".env"), "GITVERSION_PREFIX=dotenv-\nGITVERSION_SUFFIX=+dotenv\n")

	cfg, err := load(dir, "", env(map[string]string{"GITVERSION_SUFFIX": "+process"}))
	require.NoError(t, err)

	assert.Equal(t, "-file", cfg.DirtySuffix)
	assert.Equal(t, "dotenv-", cfg.Prefix)
	assert.Equal(t, "+process", cfg.Suffix)
	assert.Equal(t, "version", cfg.Package)
	assert.Equal(t, []string{"--tags"}, cfg.Args)
	assert.Equal(t, filepath.Join(dir, FileName), cfg.Source)

	require.NoError(t, cfg.Set("prefix", "flag-"))
	assert.Equal(t, "flag-", cfg.Prefix)
}

func TestLoad_EnvArgsAndFallback(t *testing.T) {
	cfg, err := load(t.TempDir(), "", env(map[string]string{
		"GITVERSION_ARGS":     "--tags  --abbrev=0",
		"GITVERSION_FALLBACK": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"--tags", "--abbrev=0"}, cfg.Args)
	require.NotNil(t, cfg.Fallback)
	assert.Equal(t, "", *cfg.Fallback)
}

func TestLoad_BlankArgsMeansNone(t *testing.T) {
	cfg, err := load(t.TempDir(), "", env(map[string]string{"GITVERSION_ARGS": "  "}))
	require.NoError(t, err)
	assert.Nil(t, cfg.Args)

	require.NoError(t, cfg.Set("args", "--tags"))
	require.NoError(t, cfg.Set("args", ""))
	assert.Nil(t, cfg.Args)
}

func TestLoad_UnknownKeyIsError(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, FileName), "dirty_sufix: -typo\n")

	_, err := load(dir, "", env(nil))
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, filepath.Join(dir, FileName), cfgErr.Source)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := t.TempDir()

	_, err := load(dir, "custom.yaml", env(nil))
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)

	write(t, filepath.Join(dir, "custom.yaml"), "const: Version\n")
	cfg, err := load(dir, "custom.yaml", env(nil))
	require.NoError(t, err)
	assert.Equal(t, "Version", cfg.Const)
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, FileName), "")

	cfg, err := load(dir, "", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default().Git, cfg.Git)
	assert.Equal(t, filepath.Join(dir, FileName), cfg.Source)
}

func TestSet_UnknownKey(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Set("nope", "x"))
}

func TestValidate_EmptyGit(t *testing.T) {
	cfg := Default()
	cfg.Git = " "
	assert.Error(t, cfg.Validate())
}

func TestKeys_Sorted(t *testing.T) {
	keys := Keys()
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "dirty_suffix")
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "", Resolve("/d", ""))
	assert.Equal(t, "/abs/x", Resolve("/d", "/abs/x"))
	assert.Equal(t, filepath.Join("/d", "sub", "x.go"), Resolve("/d", "sub/../sub/x.go"))
}
