// Package rdp launches an interactive remote desktop session with xfreerdp.
package rdp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/mattn/go-shellwords"
)

// DefaultPort is the standard RDP port.
const DefaultPort = 3389

// ErrUnbalancedQuote is returned by SplitOptions for an unterminated quote,
// a trailing backslash or an unquoted parenthesis.
var ErrUnbalancedQuote = errors.New("unbalanced quote or parenthesis in rdp options")

// ErrShellOperator is returned by SplitOptions for an unquoted shell operator.
var ErrShellOperator = errors.New("unquoted shell operator in rdp options")

// Params describe one remote desktop session.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string
	Options  string // extra client arguments, split like a shell would
}

// Args builds the client argument vector.
func (p Params) Args() ([]string, error) {
	if p.Host == "" {
		return nil, errors.New("rdp host is required")
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}

	args := []string{"/v:" + p.Host + ":" + strconv.Itoa(port)}
	if p.Username != "" {
		args = append(args, "/u:"+p.Username)
	}
	if p.Password != "" {
		args = append(args, "/p:"+p.Password)
	}

	extra, err := SplitOptions(p.Options)
	if err != nil {
		return nil, err
	}
	return append(args, extra...), nil
}

// SplitOptions splits s into words the way a POSIX shell would, without
// expansion: single and double quotes group words and a backslash outside
// single quotes escapes the next character. Unquoted ; & | < > are rejected
// since the client is never run through a shell.
func SplitOptions(s string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnbalancedQuote, err)
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("%w at offset %d", ErrShellOperator, p.Position)
	}
	return args, nil
}

// Runner runs a command attached to the caller's terminal and waits for it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs the client directly, without a shell.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Client starts xfreerdp sessions.
type Client struct {
	command string
	runner  Runner
	logger  *logging.Logger
}

// NewClient creates a Client. An empty command uses "xfreerdp"; a nil runner
// uses ExecRunner.
func NewClient(command string, runner Runner, logger *logging.Logger) *Client {
	if command == "" {
		command = "xfreerdp"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Client{command: command, runner: runner, logger: logger}
}

// Connect runs the client and blocks until the session ends. The returned
// error carries the client's exit status.
func (c *Client) Connect(ctx context.Context, p Params) error {
	args, err := p.Args()
	if err != nil {
		return err
	}

	c.logger.Info("connecting to vm", "host", p.Host, "port", p.Port)
	if err := c.runner.Run(ctx, c.command, args...); err != nil {
		return fmt.Errorf("%s: %w", c.command, err)
	}
	c.logger.Debug("rdp session closed")
	return nil
}
