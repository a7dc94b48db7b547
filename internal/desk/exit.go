package desk

import (
	"context"
	"errors"

	"github.com/Iron-Ham/deskvm/internal/schedule"
	"github.com/Iron-Ham/deskvm/internal/vbox"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitInternal      = 1
	ExitStateMismatch = 2
	ExitSessionBusy   = 3
	ExitCancelled     = 4 // only with strict exit codes
	ExitInterrupted   = 130
)

// ExitCode maps an error returned by Run or SuspendNow to a process exit
// code. A cancelled wait is a successful outcome unless strict is set.
func ExitCode(err error, strict bool) int {
	var stateErr *vbox.StateError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, schedule.ErrCancelled):
		if strict {
			return ExitCancelled
		}
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrSessionBusy):
		return ExitSessionBusy
	case errors.As(err, &stateErr):
		return ExitStateMismatch
	default:
		return ExitInternal
	}
}
