package core

import (
	"context"
	"fmt"
	"go/token"

	"github.com/go-logr/logr"
)

// Options configures an Expander.
type Options struct {
	// Tool is the version-control executable; empty means DefaultTool.
	Tool string

	// DirtySuffix overrides DefaultDirtySuffix for default-argument describes.
	DirtySuffix string

	// Prefix and Suffix wrap every described version.
	Prefix string
	Suffix string

	// Fallback, when non-nil, replaces the top-level version if describing
	// fails. Its use is logged as an error together with the cause.
	Fallback *string

	// Registrar receives the rebuild-trigger paths of every expansion.
	Registrar Registrar

	// Runner overrides the subprocess executor, mainly for tests.
	Runner CommandRunner

	Log logr.Logger
}

// Expander implements the four expansion entry points. Each call locates the
// repository afresh, runs the tool synchronously, and registers the trigger
// paths of what it described before returning. Nothing is cached between
// calls.
type Expander struct {
	Runner     CommandRunner
	Locator    *Locator
	Formatter  *Formatter
	Enumerator *Enumerator
	Registrar  Registrar
	Fallback   *string
	Log        logr.Logger
}

// Declaration binds a described version to a constant name.
type Declaration struct {
	Name    string
	Version Version

	// Args is the full describe argument list that produced Version.
	Args []string
}

// NewExpander wires the components described by opts.
func NewExpander(opts Options) *Expander {
	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	runner := opts.Runner
	if runner == nil {
		runner = NewExecutor(opts.Tool, log)
	}
	f := &Formatter{
		Runner:      runner,
		DirtySuffix: opts.DirtySuffix,
		Prefix:      opts.Prefix,
		Suffix:      opts.Suffix,
	}
	return &Expander{
		Runner:     runner,
		Locator:    NewLocator(runner),
		Formatter:  f,
		Enumerator: &Enumerator{Runner: runner, Formatter: f, Log: log},
		Registrar:  opts.Registrar,
		Fallback:   opts.Fallback,
		Log:        log,
	}
}

// Describe returns the version of the repository containing dir using the
// default arguments.
func (e *Expander) Describe(ctx context.Context, dir string) (Version, error) {
	return e.describe(ctx, dir, nil)
}

// DescribeArgs is Describe with args passed through after the verb. The
// caller's arguments fully control the dirty marker.
func (e *Expander) DescribeArgs(ctx context.Context, dir string, args []string) (Version, error) {
	if args == nil {
		args = []string{}
	}
	return e.describe(ctx, dir, args)
}

// Declare computes the same value as Describe (or DescribeArgs when args is
// non-nil) and binds it to name, which must be a Go identifier.
func (e *Expander) Declare(ctx context.Context, dir, name string, args []string) (Declaration, error) {
	if !token.IsIdentifier(name) {
		return Declaration{}, fmt.Errorf("invalid constant name %q", name)
	}
	v, err := e.describe(ctx, dir, args)
	if err != nil {
		return Declaration{}, err
	}
	return Declaration{Name: name, Version: v, Args: DescribeArgs(args, e.Formatter.DirtySuffix)}, nil
}

// SubmoduleVersions returns one entry per initialized submodule of the
// repository containing dir, ordered by path.
func (e *Expander) SubmoduleVersions(ctx context.Context, dir string) ([]SubmoduleEntry, error) {
	root, err := e.Locator.FindRoot(ctx, dir)
	if err != nil {
		return nil, err
	}
	entries, err := e.Enumerator.Versions(ctx, root)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(entries))
	for i, entry := range entries {
		paths[i] = entry.Path
	}
	if err := e.registerTriggers(root, paths); err != nil {
		return nil, err
	}
	return entries, nil
}

// Triggers returns the rebuild-trigger set for the repository containing dir,
// including initialized submodules when withSubmodules is set.
func (e *Expander) Triggers(ctx context.Context, dir string, withSubmodules bool) ([]string, error) {
	root, err := e.Locator.FindRoot(ctx, dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	if withSubmodules {
		subs, err := e.Enumerator.Initialized(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, s := range subs {
			paths = append(paths, s.Path)
		}
	}
	return TriggerPaths(root, paths)
}

func (e *Expander) describe(ctx context.Context, dir string, args []string) (Version, error) {
	v, root, err := e.describeRoot(ctx, dir, args)
	if err != nil {
		if e.Fallback == nil {
			return Version{}, err
		}
		fv, ferr := NewVersion(*e.Fallback)
		if ferr != nil {
			return Version{}, fmt.Errorf("invalid fallback %q: %w", *e.Fallback, ferr)
		}
		e.Log.Error(err, "describe failed, using configured fallback", "dir", dir, "fallback", fv.Raw)
		return fv, nil
	}
	if err := e.registerTriggers(root, nil); err != nil {
		return Version{}, err
	}
	return v, nil
}

func (e *Expander) describeRoot(ctx context.Context, dir string, args []string) (Version, string, error) {
	root, err := e.Locator.FindRoot(ctx, dir)
	if err != nil {
		return Version{}, "", err
	}
	v, err := e.Formatter.Describe(ctx, root, args, "")
	if err != nil {
		return Version{}, "", err
	}
	return v, root, nil
}

func (e *Expander) registerTriggers(root string, submodules []string) error {
	if e.Registrar == nil {
		return nil
	}
	paths, err := TriggerPaths(root, submodules)
	if err != nil {
		return fmt.Errorf("computing rebuild triggers: %w", err)
	}
	for _, p := range paths {
		e.Log.V(2).Info("registering rebuild trigger", "path", p)
		if err := e.Registrar.Register(p); err != nil {
			return fmt.Errorf("registering rebuild trigger %s: %w", p, err)
		}
	}
	return nil
}
