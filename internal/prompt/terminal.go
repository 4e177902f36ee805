// ABOUTME: Terminal credential provider for interactive logins
// ABOUTME: Line prompts over bufio with a confirm loop and no-echo password input

package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/tdsession/internal/login"
)

// ErrInputClosed is returned when input ends before an answer is read.
var ErrInputClosed = errors.New("input closed")

// Terminal asks the user for credentials. Prompts are serialized.
type Terminal struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	fd     int
	prompt *color.Color
	hint   *color.Color
}

var _ login.CredentialProvider = (*Terminal)(nil)

// New returns a Terminal reading from in. When in is a terminal the password
// is read without echo.
func New(in *os.File, out io.Writer) *Terminal {
	t := NewWithReader(in, out)
	if term.IsTerminal(int(in.Fd())) {
		t.fd = int(in.Fd())
	}
	return t
}

// NewWithReader returns a Terminal over plain streams; every answer,
// including the password, is read as a line.
func NewWithReader(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		fd:     -1,
		prompt: color.New(color.FgCyan),
		hint:   color.New(color.FgYellow),
	}
}

// LoginKey asks for a phone number or bot token and has the user confirm it.
func (t *Terminal) LoginKey(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		key, err := t.ask(ctx, "Enter phone number or bot token: ")
		if err != nil {
			return "", err
		}
		if key == "" {
			continue
		}

		ok, err := t.confirm(ctx, key)
		if err != nil {
			return "", err
		}
		if ok {
			return key, nil
		}
	}
}

// confirm asks until the answer is yes (y, 1) or no (n, 2).
func (t *Terminal) confirm(ctx context.Context, key string) (bool, error) {
	for {
		answer, err := t.ask(ctx, fmt.Sprintf("Is %q correct? (y/n): ", key))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "1":
			return true, nil
		case "n", "2":
			return false, nil
		}
	}
}

// Code asks for the login code.
func (t *Terminal) Code(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		code, err := t.ask(ctx, "Enter phone code: ")
		if err != nil || code != "" {
			return code, err
		}
	}
}

// Names asks for the first and last name of a new account.
func (t *Terminal) Names(ctx context.Context) (string, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	first, err := t.ask(ctx, "First name: ")
	if err != nil {
		return "", "", err
	}
	last, err := t.ask(ctx, "Last name: ")
	if err != nil {
		return "", "", err
	}
	return first, last, nil
}

// Password asks for the two-step verification password, showing hint first.
func (t *Terminal) Password(ctx context.Context, hint string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if hint != "" {
		_, _ = t.hint.Fprintf(t.out, "Hint: %s\n", hint)
	}
	if t.fd < 0 {
		return t.ask(ctx, "Enter password: ")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, _ = t.prompt.Fprint(t.out, "Enter password: ")
	pw, err := term.ReadPassword(t.fd)
	_, _ = fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// ask prints label and returns the trimmed answer line.
func (t *Terminal) ask(ctx context.Context, label string) (string, error) {
	_, _ = t.prompt.Fprint(t.out, label)
	return t.readLine(ctx)
}

type line struct {
	text string
	err  error
}

// readLine reads one line, returning early if ctx ends first. An abandoned
// read still consumes the next line of input.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch := make(chan line, 1)
	go func() {
		s, err := t.in.ReadString('\n')
		ch <- line{s, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		text := strings.TrimSpace(l.text)
		if l.err != nil {
			if errors.Is(l.err, io.EOF) && text != "" {
				return text, nil
			}
			if errors.Is(l.err, io.EOF) {
				return "", ErrInputClosed
			}
			return "", fmt.Errorf("reading input: %w", l.err)
		}
		return text, nil
	}
}
