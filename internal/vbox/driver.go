// Package vbox drives a VirtualBox virtual machine through the VBoxManage
// command-line tool.
package vbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Iron-Ham/deskvm/internal/logging"
)

// State is the VM state as reported by "VBoxManage showvminfo".
type State string

// States the driver acts on. Any other reported state is kept verbatim.
const (
	StateRunning    State = "running"
	StatePoweredOff State = "powered off"
	StateSaved      State = "saved"
	StateAborted    State = "aborted"
	StatePaused     State = "paused"
)

// Startable reports whether startvm can bring the VM up from this state.
func (s State) Startable() bool {
	return s == StatePoweredOff || s == StateSaved || s == StateAborted
}

// ErrNoState is returned when showvminfo output has no State line.
var ErrNoState = errors.New("vm state not found in showvminfo output")

// StateError reports that the VM is in, or ended up in, a state that does
// not allow the sequence to continue.
type StateError struct {
	VM   string
	Op   string
	Want State
	Got  State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("vm %q: %s requires state %q, got %q", e.VM, e.Op, e.Want, e.Got)
}

// Runner runs an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Config configures a Driver.
type Config struct {
	VM        string // VM name or UUID
	Command   string // path to VBoxManage; defaults to "VBoxManage"
	StartType string // startvm --type value; defaults to "headless"
}

// Driver starts, suspends and inspects one VM.
type Driver struct {
	vm        string
	command   string
	startType string
	runner    Runner
	logger    *logging.Logger
}

// NewDriver creates a Driver. A nil runner uses ExecRunner; a nil logger
// discards output.
func NewDriver(cfg Config, runner Runner, logger *logging.Logger) *Driver {
	d := &Driver{
		vm:        cfg.VM,
		command:   cfg.Command,
		startType: cfg.StartType,
		runner:    runner,
		logger:    logger,
	}
	if d.command == "" {
		d.command = "VBoxManage"
	}
	if d.startType == "" {
		d.startType = "headless"
	}
	if d.runner == nil {
		d.runner = ExecRunner{}
	}
	if d.logger == nil {
		d.logger = logging.NopLogger()
	}
	d.logger = d.logger.With("vm", cfg.VM)
	return d
}

// VM returns the name of the driven VM.
func (d *Driver) VM() string { return d.vm }

// stateLine matches e.g. "State:           powered off (since 2024-01-02T10:00:00.000000000)".
var stateLine = regexp.MustCompile(`(?m)^State:\s+([^(\n]*?)\s*(?:\(.*\))?\s*$`)

// ParseState extracts the VM state from showvminfo output.
func ParseState(output string) (State, error) {
	m := stateLine.FindStringSubmatch(output)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", ErrNoState
	}
	return State(strings.ToLower(strings.TrimSpace(m[1]))), nil
}

// State queries the current VM state.
func (d *Driver) State(ctx context.Context) (State, error) {
	out, err := d.run(ctx, "showvminfo", d.vm)
	if err != nil {
		return "", err
	}
	state, err := ParseState(string(out))
	if err != nil {
		return "", fmt.Errorf("vm %q: %w", d.vm, err)
	}
	d.logger.Debug("vm state", "state", string(state))
	return state, nil
}

// Start brings the VM to the running state. A running VM is left alone; a
// saved, powered off or aborted VM is started and must then report running.
// Any other state is a *StateError.
func (d *Driver) Start(ctx context.Context) error {
	state, err := d.State(ctx)
	if err != nil {
		return err
	}

	switch {
	case state == StateRunning:
		d.logger.Debug("vm is already running")
		return nil
	case !state.Startable():
		return &StateError{VM: d.vm, Op: "start", Want: StatePoweredOff, Got: state}
	}

	d.logger.Info("starting vm")
	if _, err := d.run(ctx, "startvm", d.vm, "--type", d.startType); err != nil {
		return err
	}

	state, err = d.State(ctx)
	if err != nil {
		return err
	}
	if state != StateRunning {
		return &StateError{VM: d.vm, Op: "start", Want: StateRunning, Got: state}
	}
	d.logger.Debug("vm started")
	return nil
}

// Suspend saves the state of a running VM. Any other prior state is a
// *StateError; so is a VM that does not report saved afterwards.
func (d *Driver) Suspend(ctx context.Context) error {
	state, err := d.State(ctx)
	if err != nil {
		return err
	}
	if state != StateRunning {
		return &StateError{VM: d.vm, Op: "suspend", Want: StateRunning, Got: state}
	}

	d.logger.Info("saving vm")
	if _, err := d.run(ctx, "controlvm", d.vm, "savestate"); err != nil {
		return err
	}

	state, err = d.State(ctx)
	if err != nil {
		return err
	}
	if state != StateSaved {
		return &StateError{VM: d.vm, Op: "suspend", Want: StateSaved, Got: state}
	}
	d.logger.Debug("vm saved")
	return nil
}

func (d *Driver) run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := d.runner.Run(ctx, d.command, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", d.command, args[0], err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", d.command, args[0], err)
	}
	return out, nil
}
