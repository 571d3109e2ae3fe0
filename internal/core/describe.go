package core

import (
	"context"
)

// DefaultDirtySuffix marks versions built from a modified working tree.
const DefaultDirtySuffix = "-modified"

// DescribeArgs builds the argument list for one describe invocation.
//
// Without extra arguments the list is `describe --always --dirty=<suffix>`,
// using DefaultDirtySuffix when dirtySuffix is empty. A non-nil extra replaces
// everything after the verb, so pass-through callers own the always and dirty
// flags. An empty, non-nil extra yields a bare `describe`.
func DescribeArgs(extra []string, dirtySuffix string) []string {
	if extra != nil {
		args := make([]string, 0, len(extra)+1)
		args = append(args, "describe")
		return append(args, extra...)
	}
	if dirtySuffix == "" {
		dirtySuffix = DefaultDirtySuffix
	}
	return []string{"describe", "--always", "--dirty=" + dirtySuffix}
}

// Formatter turns one describe invocation into an embeddable Version.
type Formatter struct {
	Runner CommandRunner

	// DirtySuffix is the configured dirty marker; empty means DefaultDirtySuffix.
	DirtySuffix string

	// Prefix and Suffix wrap the tool output before escaping.
	Prefix string
	Suffix string
}

// Describe runs describe in root. A non-empty dirtySuffix overrides the
// configured one; extra is passed through as described on DescribeArgs.
//
// The output is not interpreted beyond the embedding checks: it must be a
// single line without NUL characters.
func (f *Formatter) Describe(ctx context.Context, root string, extra []string, dirtySuffix string) (Version, error) {
	if dirtySuffix == "" {
		dirtySuffix = f.DirtySuffix
	}
	args := DescribeArgs(extra, dirtySuffix)

	out, err := f.Runner.Run(ctx, root, args...)
	if err != nil {
		return Version{}, err
	}

	v, err := NewVersion(f.Prefix + out + f.Suffix)
	if err != nil {
		return Version{}, &Error{Kind: ErrMalformedOutput, Tool: toolName(f.Runner), Args: args, Dir: root, ExitCode: -1, Err: err}
	}
	return v, nil
}

func toolName(r CommandRunner) string {
	if e, ok := r.(*Executor); ok && e.Tool != "" {
		return e.Tool
	}
	return DefaultTool
}
