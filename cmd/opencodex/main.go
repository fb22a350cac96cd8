// Command opencodex talks to configured model backends through the
// vendor-neutral provider layer and checks commands against the security
// deny list.
//
// Usage:
//
//	opencodex ask [flags] <prompt...>
//	opencodex check [flags] -- <command> [args...]
//	opencodex providers [flags]
//
// Configuration is read from --config, OPENCODEX_CONFIG, ./opencodex.yaml or
// /etc/opencodex/config.yaml, with OPENCODEX_* environment overrides.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes of the check subcommand.
const (
	exitAllowed          = 0
	exitFailure          = 1
	exitRequiresApproval = 2
	exitForbidden        = 3
)

// exitError carries a process exit code through run.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	var ee *exitError
	switch {
	case err == nil:
	case errors.As(err, &ee):
		os.Exit(ee.code)
	default:
		slog.Error("opencodex failed", "error", err)
		os.Exit(exitFailure)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return &exitError{code: exitFailure}
	}

	switch args[0] {
	case "ask":
		return runAsk(ctx, args[1:], stdin, stdout, stderr)
	case "check":
		return runCheck(args[1:], stdout, stderr)
	case "providers":
		return runProviders(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `opencodex talks to model backends and checks commands against the deny list.

Usage:
  opencodex ask [flags] <prompt...>        stream a model answer ("-" reads the prompt from stdin)
  opencodex check [flags] -- <command...>  check a command; exit 0 allowed, 2 needs approval, 3 forbidden
  opencodex providers [flags]              list configured providers

Run "opencodex <command> --help" for the flags of a command.
`)
}
