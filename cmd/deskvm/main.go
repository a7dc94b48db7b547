// Package main is the entry point for the deskvm CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/deskvm/internal/cmd"
	"github.com/Iron-Ham/deskvm/internal/desk"
	"github.com/Iron-Ham/deskvm/internal/schedule"
)

// Version information set by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Cancelled on the first SIGINT/SIGTERM; locks are released on the way out
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd.SetVersionInfo(version, commit, date)

	err := cmd.ExecuteContext(ctx)
	stop()

	code := cmd.ExitCode(err)
	switch {
	case err == nil, errors.Is(err, schedule.ErrCancelled):
	case code == desk.ExitInterrupted:
		fmt.Fprintln(os.Stderr, "Operation canceled")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
