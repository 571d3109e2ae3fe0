package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"unicode/utf8"

	"github.com/go-logr/logr"
)

// DefaultTool is the version-control executable used when none is configured.
const DefaultTool = "git"

// CommandRunner invokes the version-control tool. Implementations return the
// tool's standard output with one trailing newline removed.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Executor runs the configured tool as a blocking subprocess.
//
// The child inherits the host environment (the tool needs PATH, HOME and its
// own configuration). GIT_OPTIONAL_LOCKS=0 is always set so that
// commands which refresh the index opportunistically (submodule status) leave
// it alone; the index is itself a rebuild trigger.
type Executor struct {
	// Tool is the executable name or path.
	Tool string

	Log logr.Logger
}

// NewExecutor creates an Executor for tool. An empty tool selects DefaultTool.
func NewExecutor(tool string, log logr.Logger) *Executor {
	if tool == "" {
		tool = DefaultTool
	}
	return &Executor{Tool: tool, Log: log}
}

// Run executes the tool with args in dir and waits for it to finish.
//
// Failures map onto the error kinds:
//   - the executable cannot be found or started: ErrToolNotFound
//   - non-zero exit or termination by signal: ErrProcessFailed
//   - standard output is not valid UTF-8: ErrNonUTF8Output
//
// There are no retries; one invocation is authoritative.
func (e *Executor) Run(ctx context.Context, dir string, args ...string) (string, error) {
	tool := e.Tool
	if tool == "" {
		tool = DefaultTool
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	cmd.Env = buildEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.Log.V(1).Info("running version-control tool", "dir", dir, "tool", tool, "args", args)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.Log.V(1).Info("tool failed", "tool", tool, "args", args, "stderr", stderr.String())
			return "", processFailed(tool, args, dir, exitErr.ProcessState, stderr.Bytes())
		}
		if ctx.Err() != nil {
			return "", &Error{Kind: ErrProcessFailed, Tool: tool, Args: args, Dir: dir, ExitCode: -1, Err: ctx.Err()}
		}
		return "", &Error{Kind: ErrToolNotFound, Tool: tool, Args: args, Dir: dir, ExitCode: -1, Err: err}
	}

	out := stripTrailingNewline(stdout.Bytes())
	if !utf8.Valid(out) {
		return "", &Error{Kind: ErrNonUTF8Output, Tool: tool, Args: args, Dir: dir}
	}
	return string(out), nil
}

func processFailed(tool string, args []string, dir string, state *os.ProcessState, stderr []byte) error {
	e := &Error{
		Kind:     ErrProcessFailed,
		Tool:     tool,
		Args:     args,
		Dir:      dir,
		ExitCode: -1,
		Stderr:   firstLine(stderr),
	}
	if state == nil {
		return e
	}
	e.ExitCode = state.ExitCode()
	if e.ExitCode == -1 {
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			e.Signal = int(ws.Signal())
		}
	}
	return e
}

// firstLine returns the first line of b if it is valid UTF-8 and not empty.
func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	b = bytes.TrimSuffix(b, []byte("\r"))
	if len(b) == 0 || !utf8.Valid(b) {
		return ""
	}
	return string(b)
}

func buildEnv() []string {
	return append(os.Environ(), "GIT_OPTIONAL_LOCKS=0")
}
