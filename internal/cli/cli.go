// Package cli is the llmhost command line: flag and environment handling,
// subcommands, and the mapping from run results to exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, a ...any) error {
	return usageError{err: fmt.Errorf(format, a...)}
}

// IsUsage reports whether err came from bad arguments or flags.
func IsUsage(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

// MainWithArgs is a testable variant of Main that accepts args explicitly.
func MainWithArgs(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

// Main returns an exit code for use by cmd/llmhost.
func Main() int { return MainWithArgs(os.Args[1:]) }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := buildRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case IsUsage(err):
		fmt.Fprintln(stderr, "error:", err)
		fmt.Fprintln(stderr, "Run 'llmhost --help' for usage.")
		return ExitUsage
	default:
		fmt.Fprintln(stderr, "error:", err)
		return ExitFatal
	}
}
