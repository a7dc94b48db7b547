// Package desk runs the desktop session sequence: bring the VM up, hold the
// session lock while the remote desktop client runs, then wait out the idle
// period and save the VM unless another invocation has taken control.
package desk

import (
	"context"
	"errors"
	"fmt"

	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/Iron-Ham/deskvm/internal/proclock"
	"github.com/Iron-Ham/deskvm/internal/rdp"
	"github.com/Iron-Ham/deskvm/internal/schedule"
)

// Sentinel errors returned by Run.
var (
	// ErrSessionBusy means another process holds the session lock, i.e. a
	// remote desktop session is already open.
	ErrSessionBusy = errors.New("rdp session is already open")

	// ErrUnexpected marks failures that indicate a bug or external tampering,
	// such as the session lock being taken over while this process held it.
	ErrUnexpected = errors.New("unexpected error")
)

// Machine is the VM lifecycle collaborator.
type Machine interface {
	Start(ctx context.Context) error
	Suspend(ctx context.Context) error
}

// Launcher opens a remote desktop session and blocks until it ends.
type Launcher interface {
	Connect(ctx context.Context, p rdp.Params) error
}

// SessionLock guards the single interactive session.
type SessionLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// ControlLock records which process is entitled to suspend the VM.
type ControlLock interface {
	Seize(ctx context.Context) error
	IsOwnedBySelf() (bool, error)
}

// Waiter defers the suspend.
type Waiter interface {
	Wait(ctx context.Context, lock schedule.OwnershipChecker) error
}

// Config wires the collaborators of a Desk. All fields except Logger are
// required.
type Config struct {
	Machine     Machine
	Launcher    Launcher
	Params      rdp.Params
	SessionLock SessionLock
	ControlLock ControlLock
	Waiter      Waiter
	Logger      *logging.Logger
}

// Desk runs the session sequence for one VM.
type Desk struct {
	machine  Machine
	launcher Launcher
	params   rdp.Params
	session  SessionLock
	control  ControlLock
	waiter   Waiter
	logger   *logging.Logger
}

// New creates a Desk.
func New(cfg Config) (*Desk, error) {
	switch {
	case cfg.Machine == nil:
		return nil, errors.New("desk: machine is required")
	case cfg.Launcher == nil:
		return nil, errors.New("desk: launcher is required")
	case cfg.SessionLock == nil || cfg.ControlLock == nil:
		return nil, errors.New("desk: session and control locks are required")
	case cfg.Waiter == nil:
		return nil, errors.New("desk: waiter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Desk{
		machine:  cfg.Machine,
		launcher: cfg.Launcher,
		params:   cfg.Params,
		session:  cfg.SessionLock,
		control:  cfg.ControlLock,
		waiter:   cfg.Waiter,
		logger:   logger.WithComponent("desk"),
	}, nil
}

// Run executes the full sequence:
//
//  1. start the VM
//  2. acquire the session lock (ErrSessionBusy if held elsewhere)
//  3. seize the control lock
//  4. run the remote desktop client until it exits
//  5. release the session lock
//  6. wait for the idle deadline while still in control
//  7. save the VM
//
// A hand-off during step 6 returns schedule.ErrCancelled and the VM is left
// running for the new controller. Context cancellation during the client
// session still releases the session lock, then returns ctx.Err() without
// waiting or suspending.
func (d *Desk) Run(ctx context.Context) error {
	d.logger.Debug("init done")

	if err := d.machine.Start(ctx); err != nil {
		return interrupted(ctx, fmt.Errorf("failed to start vm: %w", err))
	}

	d.logger.Debug("locking rdp session")
	if err := d.session.Acquire(ctx); err != nil {
		if errors.Is(err, proclock.ErrConflict) {
			d.logger.Error("rdp session is opened", "error", err)
			return fmt.Errorf("%w: %w", ErrSessionBusy, err)
		}
		return interrupted(ctx, fmt.Errorf("failed to acquire session lock: %w", err))
	}

	if err := d.openSession(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		d.logger.Info("interrupted, vm left running")
		return err
	}

	if err := d.waiter.Wait(ctx, d.control); err != nil {
		if errors.Is(err, schedule.ErrCancelled) {
			d.logger.Info("another session took control, vm left running")
		}
		return err
	}

	if err := d.machine.Suspend(ctx); err != nil {
		return interrupted(ctx, fmt.Errorf("failed to save vm: %w", err))
	}
	d.logger.Info("exiting")
	return nil
}

// openSession runs steps 3 to 5 with the session lock held. The lock is
// released even when the client fails or ctx is cancelled.
func (d *Desk) openSession(ctx context.Context) error {
	release := func() error {
		d.logger.Debug("releasing rdp lock")
		if err := d.session.Release(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("%w: failed to release session lock: %w", ErrUnexpected, err)
		}
		return nil
	}

	d.logger.Debug("seizing control to this process")
	if err := d.control.Seize(ctx); err != nil {
		return errors.Join(fmt.Errorf("failed to seize control lock: %w", err), release())
	}

	if err := d.launcher.Connect(ctx, d.params); err != nil {
		d.logger.Warn("rdp client exited with error", "error", err)
	}
	return release()
}

// SuspendNow seizes control, which cancels any invocation currently waiting
// to suspend, and saves the VM immediately.
func (d *Desk) SuspendNow(ctx context.Context) error {
	if err := d.control.Seize(ctx); err != nil {
		return interrupted(ctx, fmt.Errorf("failed to seize control lock: %w", err))
	}
	d.logger.Info("control seized, saving vm now")
	if err := d.machine.Suspend(ctx); err != nil {
		return interrupted(ctx, fmt.Errorf("failed to save vm: %w", err))
	}
	return nil
}

// interrupted attributes err to ctx once ctx is done. A VBoxManage child
// killed on cancellation reports "signal: killed", not ctx.Err().
func interrupted(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
