// Package prompt reads operator input for the interactive commands.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is swapped out in tests so they never touch the terminal.
var readPassword = term.ReadPassword

// isTerminal reports whether stdin is a TTY; swapped out in tests.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// Text prints label to w and reads one line from r. A last line without a
// trailing newline is still returned.
func Text(r *bufio.Reader, w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprint(w, label+": "); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a password without echo when stdin is a terminal and falls
// back to a plain line from r otherwise, so piped input keeps working.
func Password(r *bufio.Reader, w io.Writer) (string, error) {
	if !isTerminal() {
		return Text(r, w, "Password")
	}
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// Confirm asks a yes/no question; anything but y or yes is a no.
func Confirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	ans, err := Text(r, w, question+" [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
