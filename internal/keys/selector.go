package keys

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Selector is the host hook for interactive key selection. A nil Selector
// is a valid state: callers degrade to InstructionalMessage.
type Selector interface {
	// Open runs the key selection/entry flow.
	Open(ctx context.Context) error
	// HasKey reports whether a key has been selected.
	HasKey() bool
}

// TermSelector reads a key from the terminal with echo disabled and
// stores it for the configured service.
type TermSelector struct {
	store   *Store
	service string
	in      *os.File
	out     io.Writer
}

func NewTermSelector(store *Store, service string) *TermSelector {
	return &TermSelector{
		store:   store,
		service: service,
		in:      os.Stdin,
		out:     os.Stderr,
	}
}

func (t *TermSelector) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintf(t.out, "Enter API key for %s: ", t.service)

	key, err := t.readKey()
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	fmt.Fprintln(t.out)

	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("no key entered")
	}

	if err := t.store.Set(t.service, key); err != nil {
		return err
	}

	fmt.Fprintf(t.out, "Saved key %s for %s\n", MaskKey(key), t.service)
	return nil
}

func (t *TermSelector) readKey() (string, error) {
	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	// Piped input, e.g. tests or scripts
	reader := bufio.NewReader(t.in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}

func (t *TermSelector) HasKey() bool {
	ok, err := t.store.Exists(t.service)
	return err == nil && ok
}
