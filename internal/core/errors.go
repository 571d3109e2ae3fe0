package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

var (
	ErrToolNotFound            = errors.New("tool not found")
	ErrNotARepository          = errors.New("not a repository")
	ErrProcessFailed           = errors.New("process failed")
	ErrNonUTF8Output           = errors.New("non-utf8 output")
	ErrMalformedOutput         = errors.New("malformed output")
	ErrSubmoduleDescribeFailed = errors.New("submodule describe failed")
)

// Error is a failed expansion step. Kind is one of the Err* sentinels above;
// the remaining fields are filled in where they are known.
//
// errors.Is matches both Kind and the wrapped cause, so a submodule failure
// caused by a non-zero exit satisfies ErrSubmoduleDescribeFailed and
// ErrProcessFailed.
type Error struct {
	Kind error

	// Tool and Args describe the invocation that failed.
	Tool string
	Args []string

	// Dir is the working directory of the invocation.
	Dir string

	// Path is the repository or submodule path the error refers to.
	Path string

	// ExitCode is the tool's exit status, or -1 if it did not exit normally.
	ExitCode int

	// Signal is the terminating signal number, if any.
	Signal int

	// Stderr is the first line of the tool's standard error.
	Stderr string

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if d := e.detail(); d != "" {
		b.WriteString(": ")
		b.WriteString(d)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Program names the invocation the way a user would type it, e.g. "git describe".
func (e *Error) Program() string {
	sub := subcommand(e.Args)
	if sub == "" {
		return e.Tool
	}
	return e.Tool + " " + sub
}

func (e *Error) detail() string {
	switch e.Kind {
	case ErrToolNotFound:
		if errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist) {
			return fmt.Sprintf("command `%s` not found: is %s installed?", e.Tool, e.Tool)
		}
		return fmt.Sprintf("failed to run `%s`: %v", e.Program(), e.Err)
	case ErrProcessFailed:
		switch {
		case e.Signal > 0:
			return fmt.Sprintf("%s killed by signal %d", e.Program(), e.Signal)
		case e.ExitCode >= 0 && e.Stderr != "":
			return fmt.Sprintf("%s exited with status %d: %s", e.Program(), e.ExitCode, e.Stderr)
		case e.ExitCode >= 0:
			return fmt.Sprintf("%s exited with status %d", e.Program(), e.ExitCode)
		case e.Err != nil:
			return fmt.Sprintf("%s: %v", e.Program(), e.Err)
		}
		return e.Program() + " exited with error"
	case ErrNonUTF8Output:
		return fmt.Sprintf("output of `%s` contains invalid UTF-8", e.Program())
	case ErrMalformedOutput:
		if e.Err != nil {
			return fmt.Sprintf("output of `%s`: %v", e.Program(), e.Err)
		}
		return fmt.Sprintf("unexpected output from `%s`", e.Program())
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// subcommand returns the first argument that is not a global option, skipping
// `-c key=value` and `-C dir` pairs.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "-c" || a == "-C" {
			i++
			continue
		}
		if strings.HasPrefix(a, "-") {
			continue
		}
		return a
	}
	return ""
}
