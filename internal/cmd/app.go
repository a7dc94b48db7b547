package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/deskvm/internal/config"
	"github.com/Iron-Ham/deskvm/internal/desk"
	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/Iron-Ham/deskvm/internal/proclock"
	"github.com/Iron-Ham/deskvm/internal/rdp"
	"github.com/Iron-Ham/deskvm/internal/schedule"
	"github.com/Iron-Ham/deskvm/internal/vbox"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// Hooks replaced in tests.
var (
	vboxRunner     vbox.Runner
	rdpRunner      rdp.Runner
	waitClock      clockwork.Clock
	promptPassword = rdp.PromptPassword
	processID      = func() proclock.Identity { return proclock.Identity(os.Getpid()) }
)

// app holds what every command builds from the configuration.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	session *proclock.Lock
	control *proclock.Lock
	machine *vbox.Driver
}

func newApp(cmd *cobra.Command) (*app, error) {
	if configErr != nil {
		return nil, fmt.Errorf("failed to read config: %w", configErr)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := cfg.Logging.Options()
	opts.Writer = cmd.OutOrStdout()
	logger, err := logging.NewLogger(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	self := processID()
	session, err := proclock.New(cfg.Locks.SessionPath(), self, proclock.WithLogger(logger))
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to open session lock: %w", err)
	}
	control, err := proclock.New(cfg.Locks.ControlPath(), self, proclock.WithLogger(logger))
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to open control lock: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		session: session,
		control: control,
		machine: vbox.NewDriver(cfg.VirtualBox.Driver(), vboxRunner, logger),
	}, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

// desk wires the session sequence. params carries any prompted password.
func (a *app) desk(params rdp.Params) (*desk.Desk, error) {
	window, err := a.cfg.SaveTimeout.Window()
	if err != nil {
		return nil, err
	}
	waiter := schedule.NewWaiter(schedule.Config{
		Window:       window,
		IdleTimeout:  a.cfg.SaveTimeout.IdleTimeout(),
		PollInterval: a.cfg.SaveTimeout.PollInterval(),
		Clock:        waitClock,
	}, a.logger.WithComponent("wait"))

	return desk.New(desk.Config{
		Machine:     a.machine,
		Launcher:    rdp.NewClient(a.cfg.RDP.Command, rdpRunner, a.logger),
		Params:      params,
		SessionLock: a.session,
		ControlLock: a.control,
		Waiter:      waiter,
		Logger:      a.logger,
	})
}

// sessionParams returns the RDP parameters, asking for the password on the
// terminal when a username is configured without one.
func (a *app) sessionParams(out io.Writer, interactive bool) (rdp.Params, error) {
	params := a.cfg.RDP.Params()
	if params.Password != "" || params.Username == "" || !interactive {
		return params, nil
	}

	password, err := promptPassword(out, params.Username)
	switch {
	case errors.Is(err, rdp.ErrNotTerminal):
		a.logger.Debug("no terminal, leaving the password prompt to the rdp client")
		return params, nil
	case err != nil:
		return params, err
	}
	params.Password = password
	return params, nil
}
