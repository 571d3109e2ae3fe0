// Command gitversion embeds `git describe` output into Go source.
//
// Typical use is a go:generate directive next to the package that needs the
// version:
//
//	//go:generate go run github.com/fusion-engineering/git-version/cmd/gitversion generate -o version_gen.go -package main
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fusion-engineering/git-version/internal/cli"
)

// main is a deterministic boundary: it canonicalizes all CLI inputs into a
// CLIInvocation before any expansion logic is invoked.
func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gitversion:", err)
		os.Exit(cli.ExitInternalError)
	}

	inv, err := cli.ParseInvocation(os.Args[1:], cwd)
	if err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			fmt.Fprintln(os.Stderr, invErr.Message)
			os.Exit(invErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInternalError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, execErr := cli.Execute(ctx, inv, os.Stdout, os.Stderr)
	stop()
	if execErr != nil {
		fmt.Fprintln(os.Stderr, "gitversion:", execErr)
	}
	os.Exit(result.ExitCode)
}
