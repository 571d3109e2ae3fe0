package gen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusion-engineering/git-version/internal/core"
)

func mustVersion(t *testing.T, raw string) core.Version {
	t.Helper()
	v, err := core.NewVersion(raw)
	require.NoError(t, err)
	return v
}

// literals parses src and returns the value of every string literal
// initializing a top-level const or var, keyed by name.
func literals(t *testing.T, src []byte) map[string][]string {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, parser.ParseComments)
	require.NoError(t, err)

	out := make(map[string][]string)
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			ast.Inspect(vs, func(n ast.Node) bool {
				if lit, ok := n.(*ast.BasicLit); ok && lit.Kind == token.STRING {
					s, err := strconv.Unquote(lit.Value)
					require.NoError(t, err)
					out[vs.Names[0].Name] = append(out[vs.Names[0].Name], s)
				}
				return true
			})
		}
	}
	return out
}

func TestRender_ConstAndArray(t *testing.T) {
	f := File{
		Package: "version",
		Consts: []Const{{
			Name:  "GitVersion",
			Value: mustVersion(t, `v1.0.0-"quoted"\-modified`),
			Args:  core.DescribeArgs(nil, ""),
		}},
		Arrays: []PairArray{{
			Name: "Submodules",
			Entries: []core.SubmoduleEntry{
				{Path: "libs/a", Version: mustVersion(t, "a-v0.1.0")},
				{Path: "libs/b", Version: mustVersion(t, "abc1234")},
			},
		}},
	}

	src, err := f.Render()
	require.NoError(t, err)

	text := string(src)
	assert.True(t, strings.HasPrefix(text, Header+"\n"), text)
	assert.Contains(t, text, "package version\n")
	assert.Contains(t, text, "// GitVersion is the output of `git describe --always --dirty=-modified`.")
	assert.Contains(t, text, "var Submodules = [2][2]string{")

	got := literals(t, src)
	assert.Equal(t, []string{`v1.0.0-"quoted"\-modified`}, got["GitVersion"])
	assert.Equal(t, []string{"libs/a", "a-v0.1.0", "libs/b", "abc1234"}, got["Submodules"])
}

func TestRender_EmptyArray(t *testing.T) {
	f := File{
		Package: "main",
		Consts:  []Const{{Name: "V", Value: mustVersion(t, "abc")}},
		Arrays:  []PairArray{{Name: "Subs"}},
	}

	src, err := f.Render()
	require.NoError(t, err)
	assert.Contains(t, string(src), "var Subs = [0][2]string{}")
}

func TestRender_IsStable(t *testing.T) {
	f := File{Package: "main", Consts: []Const{{Name: "V", Value: mustVersion(t, "v1")}}}

	a, err := f.Render()
	require.NoError(t, err)
	b, err := f.Render()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_RejectsBadNames(t *testing.T) {
	v := mustVersion(t, "v1")
	for name, f := range map[string]File{
		"package":   {Package: "not-a-package"},
		"const":     {Package: "main", Consts: []Const{{Name: "1abc", Value: v}}},
		"duplicate": {Package: "main", Consts: []Const{{Name: "V", Value: v}}, Arrays: []PairArray{{Name: "V"}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.Render()
			assert.Error(t, err)
		})
	}
}

func TestCommand_StaysOnOneLine(t *testing.T) {
	assert.Equal(t, "git describe --match 'v*' x y", command([]string{"describe", "--match", "`v*`", "x\ny"}))
}
