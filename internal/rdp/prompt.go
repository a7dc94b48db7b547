package rdp

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when a password is needed but stdin is not a
// terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// PromptPassword asks for the password for user on the controlling terminal
// with echo disabled.
func PromptPassword(out io.Writer, user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}

	if user != "" {
		fmt.Fprintf(out, "RDP password for %s: ", user)
	} else {
		fmt.Fprint(out, "RDP password: ")
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
