package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const (
	ExitSuccess           = 0
	ExitExpansionFailure  = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitStale             = 5
)

type Command string

const (
	CommandDescribe   Command = "describe"
	CommandDeclare    Command = "declare"
	CommandSubmodules Command = "submodules"
	CommandGenerate   Command = "generate"
	CommandCheck      Command = "check"
	CommandTriggers   Command = "triggers"
	CommandWatch      Command = "watch"
)

var commands = []Command{
	CommandDescribe, CommandDeclare, CommandSubmodules, CommandGenerate,
	CommandCheck, CommandTriggers, CommandWatch,
}

const usage = `usage: gitversion <command> [flags] [-- describe-args...]

commands:
  describe    print the version literal of the repository
  declare     print a const declaration binding the version to -name
  submodules  print the (path, version) array of initialized submodules
  generate    write a Go file with the version constant
  check       exit 5 if the generated file is stale
  triggers    print the rebuild-trigger paths
  watch       generate, then regenerate whenever a trigger changes`

// CLIInvocation is the canonical description of one run. WorkDir is always
// absolute; nothing else depends on the process working directory.
type CLIInvocation struct {
	Command    Command
	WorkDir    string
	ConfigPath string
	Verbosity  int

	// Raw prints unescaped values (describe, submodules).
	Raw bool

	// WithSubmodules adds submodule triggers (triggers).
	WithSubmodules bool

	// PassThrough holds the arguments after "--"; nil when "--" was absent.
	PassThrough []string

	// Overrides maps config keys to values given as flags.
	Overrides map[string]string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// flagKeys maps override flags to config keys.
var flagKeys = map[string]string{
	"git":          "git",
	"dirty-suffix": "dirty_suffix",
	"prefix":       "prefix",
	"suffix":       "suffix",
	"fallback":     "fallback",
	"name":         "const",
	"o":            "output",
	"package":      "package",
	"submodules":   "submodules",
	"depfile":      "depfile",
	"stamp":        "stamp",
}

// ParseInvocation parses args (without the program name). cwd is the
// directory relative -C values resolve against; it is passed in rather than
// read so parsing stays a pure function of its inputs.
func ParseInvocation(args []string, cwd string) (CLIInvocation, error) {
	if len(args) == 0 {
		return CLIInvocation{}, invalidInvocationf("%s", usage)
	}
	cmd, err := parseCommand(args[0])
	if err != nil {
		return CLIInvocation{}, err
	}
	args = args[1:]

	var passThrough []string
	for i, a := range args {
		if a == "--" {
			passThrough = append([]string{}, args[i+1:]...)
			args = args[:i]
			break
		}
	}
	if passThrough != nil && !acceptsPassThrough(cmd) {
		return CLIInvocation{}, invalidInvocationf("%s does not accept describe arguments", cmd)
	}

	fs := flag.NewFlagSet("gitversion "+string(cmd), flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	inv := CLIInvocation{Command: cmd, PassThrough: passThrough}
	var dir string
	fs.StringVar(&dir, "C", ".", "Start directory.")
	fs.StringVar(&inv.ConfigPath, "config", "", "Config file (default: .gitversion.yaml in the start directory, if present).")
	fs.IntVar(&inv.Verbosity, "v", 0, "Log verbosity.")
	fs.String("git", "", "Version-control executable.")
	fs.String("dirty-suffix", "", "Dirty marker for default describe arguments.")
	fs.String("prefix", "", "Text prepended to every version.")
	fs.String("suffix", "", "Text appended to every version.")
	fs.String("fallback", "", "Version used when describing fails.")

	switch cmd {
	case CommandDescribe, CommandSubmodules:
		fs.BoolVar(&inv.Raw, "raw", false, "Print unescaped values.")
	case CommandDeclare:
		fs.String("name", "", "Constant name.")
	case CommandTriggers:
		fs.BoolVar(&inv.WithSubmodules, "with-submodules", false, "Include submodule triggers.")
	case CommandGenerate, CommandCheck, CommandWatch:
		fs.String("name", "", "Constant name.")
		fs.String("o", "", "Generated file.")
		fs.String("package", "", "Package of the generated file.")
		fs.String("submodules", "", "Name of the submodule array; empty disables it.")
		fs.String("depfile", "", "Make-style depfile to write.")
		fs.String("stamp", "", "Stamp manifest to write (generate) or read (check).")
	}

	if err := fs.Parse(args); err != nil {
		return CLIInvocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return CLIInvocation{}, invalidInvocationf("unexpected positional arguments: %q (describe arguments go after --)", strings.Join(fs.Args(), " "))
	}
	if inv.Verbosity < 0 {
		return CLIInvocation{}, invalidInvocationf("-v must not be negative")
	}

	fs.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if inv.Overrides == nil {
			inv.Overrides = make(map[string]string)
		}
		inv.Overrides[key] = f.Value.String()
	})

	workDir, err := resolveWorkDir(cwd, dir)
	if err != nil {
		return CLIInvocation{}, err
	}
	inv.WorkDir = workDir
	return inv, nil
}

func parseCommand(raw string) (Command, error) {
	for _, c := range commands {
		if string(c) == raw {
			return c, nil
		}
	}
	if raw == "-h" || raw == "-help" || raw == "--help" || raw == "help" {
		return "", invalidInvocationf("%s", usage)
	}
	return "", invalidInvocationf("unknown command %q\n%s", raw, usage)
}

func acceptsPassThrough(c Command) bool {
	switch c {
	case CommandDescribe, CommandDeclare, CommandGenerate, CommandWatch:
		return true
	}
	return false
}

func resolveWorkDir(cwd, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", invalidInvocationf("-C must not be empty")
	}
	clean := filepath.Clean(dir)
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	if !filepath.IsAbs(cwd) {
		return "", invalidInvocationf("cannot resolve %q: working directory %q is not absolute", dir, cwd)
	}
	return filepath.Join(cwd, clean), nil
}

// ExitCode extracts a semantic exit code from a ParseInvocation error.
// If the error is not a known invocation error, it returns ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
