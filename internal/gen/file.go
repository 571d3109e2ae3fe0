// Package gen renders expansion results as Go source and writes the files a
// host build consumes: the generated source itself and a Make-style depfile.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strings"
	"text/template"

	"github.com/fusion-engineering/git-version/internal/core"
)

// Header marks generated files so that tools and reviewers skip them.
const Header = "// Code generated by gitversion. DO NOT EDIT."

// File is one generated Go source file.
type File struct {
	Package string
	Consts  []Const
	Arrays  []PairArray
}

// Const is a string constant holding a described version.
type Const struct {
	Name  string
	Value core.Version

	// Args is the describe argument list, recorded in the doc comment.
	Args []string
}

// PairArray is a fixed-size array of (path, version) pairs.
type PairArray struct {
	Name    string
	Entries []core.SubmoduleEntry
}

// ConstFromDeclaration converts an expansion result into a Const.
func ConstFromDeclaration(d core.Declaration) Const {
	return Const{Name: d.Name, Value: d.Version, Args: d.Args}
}

var fileTemplate = template.Must(template.New("file").Funcs(template.FuncMap{
	"quote":   core.Quote,
	"command": command,
}).Parse(`{{.Header}}

package {{.Package}}
{{range .Consts}}
// {{.Name}} is the output of ` + "`{{command .Args}}`" + `.
const {{.Name}} = {{.Value.Literal}}
{{end}}
{{- range .Arrays}}
// {{.Name}} holds (path, version) for each initialized submodule.
var {{.Name}} = [{{len .Entries}}][2]string{ {{- range .Entries}}
	{ {{quote .Path}}, {{.Version.Literal}} },
{{- end}}{{if .Entries}}
{{end}}}
{{end}}`))

// Render returns the gofmt-formatted source of f.
func (f *File) Render() ([]byte, error) {
	if !token.IsIdentifier(f.Package) {
		return nil, fmt.Errorf("invalid package name %q", f.Package)
	}
	seen := make(map[string]bool)
	check := func(name string) error {
		if !token.IsIdentifier(name) {
			return fmt.Errorf("invalid identifier %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate identifier %q", name)
		}
		seen[name] = true
		return nil
	}
	for _, c := range f.Consts {
		if err := check(c.Name); err != nil {
			return nil, err
		}
	}
	for _, a := range f.Arrays {
		if err := check(a.Name); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	data := struct {
		Header  string
		Package string
		Consts  []Const
		Arrays  []PairArray
	}{Header, f.Package, f.Consts, f.Arrays}
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", f.Package, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated source: %w", err)
	}
	return src, nil
}

// command renders an argument list for a doc comment. Line breaks and
// backquotes are replaced so the comment stays on one line.
func command(args []string) string {
	s := "git " + strings.Join(args, " ")
	return strings.NewReplacer("\n", " ", "\r", " ", "`", "'").Replace(s)
}
