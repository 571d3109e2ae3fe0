package cli

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"io"
	"strings"

	"github.com/go-logr/logr"

	"github.com/fusion-engineering/git-version/internal/config"
	"github.com/fusion-engineering/git-version/internal/core"
	"github.com/fusion-engineering/git-version/internal/gen"
	"github.com/fusion-engineering/git-version/internal/stamp"
	"github.com/fusion-engineering/git-version/internal/watch"
)

type CLIResult struct {
	ExitCode int

	// Report is set by check.
	Report *stamp.Report
}

// Execute maps a canonical CLIInvocation to one expansion and its output.
//
// Responsibilities:
//   - Resolve configuration (file, environment, flags) and build the Expander.
//   - Write command output to stdout and logs to stderr.
//   - Translate failures to semantic exit codes, even on panic.
func Execute(ctx context.Context, inv CLIInvocation, stdout, stderr io.Writer) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError

	log, flush := newLogger(stderr, inv.Verbosity)
	defer flush()

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, err := resolveConfig(inv)
	if err != nil {
		res.ExitCode = exitCodeFor(err)
		return res, err
	}
	log.V(1).Info("configuration resolved", "source", cfg.Source, "dir", inv.WorkDir)

	exp := core.NewExpander(core.Options{
		Tool:        cfg.Git,
		DirtySuffix: cfg.DirtySuffix,
		Prefix:      cfg.Prefix,
		Suffix:      cfg.Suffix,
		Fallback:    cfg.Fallback,
		Log:         log,
	})

	switch inv.Command {
	case CommandDescribe:
		err = runDescribe(ctx, exp, cfg, inv, stdout)
	case CommandDeclare:
		err = runDeclare(ctx, exp, cfg, inv, stdout)
	case CommandSubmodules:
		err = runSubmodules(ctx, exp, inv, stdout)
	case CommandTriggers:
		err = runTriggers(ctx, exp, inv, stdout)
	case CommandGenerate:
		g := &generator{exp: exp, cfg: cfg, dir: inv.WorkDir, log: log}
		_, err = g.generate(ctx, nil)
	case CommandCheck:
		var rep stamp.Report
		rep, err = runCheck(ctx, exp, cfg, inv, stdout, log)
		if err == nil {
			res.Report = &rep
			if rep.Stale() {
				res.ExitCode = ExitStale
				return res, nil
			}
		}
	case CommandWatch:
		err = runWatch(ctx, exp, cfg, inv, log)
	default:
		return res, fmt.Errorf("unsupported command %q", inv.Command)
	}
	if err != nil {
		res.ExitCode = exitCodeFor(err)
		return res, err
	}

	res.ExitCode = ExitSuccess
	return res, nil
}

func resolveConfig(inv CLIInvocation) (config.Config, error) {
	cfg, err := config.Load(inv.WorkDir, inv.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	for key, value := range inv.Overrides {
		if err := cfg.Set(key, value); err != nil {
			return config.Config{}, &config.Error{Source: "flag", Err: err}
		}
	}
	if inv.PassThrough != nil {
		cfg.Args = inv.PassThrough
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	switch inv.Command {
	case CommandDeclare, CommandGenerate, CommandCheck, CommandWatch:
		if !token.IsIdentifier(cfg.Const) {
			return config.Config{}, &config.Error{Source: cfg.Source, Err: fmt.Errorf("const %q is not a Go identifier", cfg.Const)}
		}
	}
	switch inv.Command {
	case CommandGenerate, CommandCheck, CommandWatch:
		if !token.IsIdentifier(cfg.Package) {
			return config.Config{}, &config.Error{Source: cfg.Source, Err: fmt.Errorf("package %q is not a Go identifier", cfg.Package)}
		}
		if cfg.Submodules != "" && !token.IsIdentifier(cfg.Submodules) {
			return config.Config{}, &config.Error{Source: cfg.Source, Err: fmt.Errorf("submodules %q is not a Go identifier", cfg.Submodules)}
		}
		if cfg.Submodules == cfg.Const {
			return config.Config{}, &config.Error{Source: cfg.Source, Err: fmt.Errorf("const and submodules both name %q", cfg.Const)}
		}
		if strings.TrimSpace(cfg.Output) == "" {
			return config.Config{}, &config.Error{Source: cfg.Source, Err: errors.New("output must not be empty")}
		}
	}
	return cfg, nil
}

func runDescribe(ctx context.Context, exp *core.Expander, cfg config.Config, inv CLIInvocation, w io.Writer) error {
	var (
		v   core.Version
		err error
	)
	if cfg.Args != nil {
		v, err = exp.DescribeArgs(ctx, inv.WorkDir, cfg.Args)
	} else {
		v, err = exp.Describe(ctx, inv.WorkDir)
	}
	if err != nil {
		return err
	}
	if inv.Raw {
		_, err = fmt.Fprintln(w, v.Raw)
	} else {
		_, err = fmt.Fprintln(w, v.Literal())
	}
	return err
}

func runDeclare(ctx context.Context, exp *core.Expander, cfg config.Config, inv CLIInvocation, w io.Writer) error {
	d, err := exp.Declare(ctx, inv.WorkDir, cfg.Const, cfg.Args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "const %s = %s\n", d.Name, d.Version.Literal())
	return err
}

func runSubmodules(ctx context.Context, exp *core.Expander, inv CLIInvocation, w io.Writer) error {
	entries, err := exp.SubmoduleVersions(ctx, inv.WorkDir)
	if err != nil {
		return err
	}
	if inv.Raw {
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", e.Path, e.Version.Raw); err != nil {
				return err
			}
		}
		return nil
	}
	_, err = fmt.Fprintln(w, pairLiteral(entries))
	return err
}

// pairLiteral renders entries as a Go array literal expression.
func pairLiteral(entries []core.SubmoduleEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d][2]string{", len(entries))
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{%s, %s}", core.Quote(e.Path), e.Version.Literal())
	}
	b.WriteString("}")
	return b.String()
}

func runTriggers(ctx context.Context, exp *core.Expander, inv CLIInvocation, w io.Writer) error {
	paths, err := exp.Triggers(ctx, inv.WorkDir, inv.WithSubmodules)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}

func runCheck(ctx context.Context, exp *core.Expander, cfg config.Config, inv CLIInvocation, w io.Writer, log logr.Logger) (stamp.Report, error) {
	if cfg.Stamp == "" {
		return stamp.Report{}, &config.Error{Source: cfg.Source, Err: errors.New("check needs a stamp file (set -stamp or stamp:)")}
	}
	m, err := stamp.Load(config.Resolve(inv.WorkDir, cfg.Stamp))
	if err != nil {
		return stamp.Report{}, err
	}

	current, err := exp.Triggers(ctx, m.Dir, m.Submodules)
	if err != nil {
		if cfg.Fallback == nil {
			return stamp.Report{}, err
		}
		// generate registered no repository triggers in this case either.
		log.Error(err, "collecting triggers failed, comparing against an empty set", "dir", m.Dir)
		current = nil
	}
	if cfg.Source != "" {
		p, err := core.CanonicalPath(cfg.Source)
		if err != nil {
			return stamp.Report{}, err
		}
		current = append(current, p)
	}

	rep, err := stamp.Check(m, current)
	if err != nil {
		return stamp.Report{}, err
	}
	for _, r := range rep.Reasons {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Kind, r.Path); err != nil {
			return stamp.Report{}, err
		}
	}
	return rep, nil
}

func runWatch(ctx context.Context, exp *core.Expander, cfg config.Config, inv CLIInvocation, log logr.Logger) error {
	w, err := watch.New(log)
	if err != nil {
		return err
	}
	defer w.Close()

	g := &generator{exp: exp, cfg: cfg, dir: inv.WorkDir, log: log}
	return w.Run(ctx, func(ctx context.Context) error {
		_, err := g.generate(ctx, w)
		return err
	})
}

// generator writes the configured Go file and its side outputs.
type generator struct {
	exp *core.Expander
	cfg config.Config
	dir string
	log logr.Logger
}

// generate expands, renders and writes the output file, then the depfile and
// stamp when configured. extra, if non-nil, also receives every trigger.
// It reports whether the output file changed.
func (g *generator) generate(ctx context.Context, extra core.Registrar) (bool, error) {
	out := config.Resolve(g.dir, g.cfg.Output)

	var depfile *gen.Depfile
	if g.cfg.Depfile != "" {
		depfile = gen.NewDepfile(out)
	}
	var recorder *stamp.Recorder
	if g.cfg.Stamp != "" {
		recorder = stamp.NewRecorder()
	}
	var regs []core.Registrar
	if extra != nil {
		regs = append(regs, extra)
	}
	if depfile != nil {
		regs = append(regs, depfile)
	}
	if recorder != nil {
		regs = append(regs, recorder)
	}
	g.exp.Registrar = core.MultiRegistrar(regs...)

	decl, err := g.exp.Declare(ctx, g.dir, g.cfg.Const, g.cfg.Args)
	if err != nil {
		return false, err
	}
	file := gen.File{
		Package: g.cfg.Package,
		Consts:  []gen.Const{gen.ConstFromDeclaration(decl)},
	}
	if g.cfg.Submodules != "" {
		entries, err := g.exp.SubmoduleVersions(ctx, g.dir)
		if err != nil {
			return false, err
		}
		file.Arrays = append(file.Arrays, gen.PairArray{Name: g.cfg.Submodules, Entries: entries})
	}
	if g.cfg.Source != "" && g.exp.Registrar != nil {
		p, err := core.CanonicalPath(g.cfg.Source)
		if err != nil {
			return false, err
		}
		if err := g.exp.Registrar.Register(p); err != nil {
			return false, err
		}
	}

	src, err := file.Render()
	if err != nil {
		return false, err
	}
	changed, err := gen.WriteIfChanged(out, src, 0o644)
	if err != nil {
		return false, err
	}
	g.log.Info("generated", "output", out, "version", decl.Version.Raw, "changed", changed)

	if depfile != nil {
		path := config.Resolve(g.dir, g.cfg.Depfile)
		if err := depfile.Write(path); err != nil {
			return false, err
		}
		g.log.V(1).Info("depfile written", "path", path, "deps", len(depfile.Deps()))
	}
	if recorder != nil {
		path := config.Resolve(g.dir, g.cfg.Stamp)
		if err := stamp.Save(path, recorder.Manifest(g.dir, out, src, g.cfg.Submodules != "")); err != nil {
			return false, err
		}
		g.log.V(1).Info("stamp written", "path", path)
	}
	return changed, nil
}

var expansionErrors = []error{
	core.ErrToolNotFound,
	core.ErrNotARepository,
	core.ErrProcessFailed,
	core.ErrNonUTF8Output,
	core.ErrMalformedOutput,
	core.ErrSubmoduleDescribeFailed,
}

func exitCodeFor(err error) int {
	if errors.Is(err, stamp.ErrNoStamp) {
		return ExitStale
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	for _, kind := range expansionErrors {
		if errors.Is(err, kind) {
			return ExitExpansionFailure
		}
	}
	return ExitInternalError
}
