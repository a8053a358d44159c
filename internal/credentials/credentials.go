// Package credentials gathers the FamilySearch username and password,
// prompting on a terminal for whatever the flags and environment left out.
// The password is kept in an encrypted memguard enclave from then on.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrMissing means a credential is missing and there is no terminal to ask
// for it.
var ErrMissing = errors.New("username and password are required")

// Credentials is a username with its sealed password.
type Credentials struct {
	Username string
	Password *memguard.Enclave
}

// Prompter asks the user for the fields left empty.
type Prompter interface {
	Prompt(ctx context.Context, username, password string) (string, string, error)
}

// Resolve completes username and password. The prompter is only used when
// something is missing and interactive is true. The plaintext password
// argument should not be reused by the caller.
func Resolve(ctx context.Context, username, password string, p Prompter, interactive bool) (Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		if !interactive || p == nil {
			return Credentials{}, ErrMissing
		}
		var err error
		username, password, err = p.Prompt(ctx, username, password)
		if err != nil {
			return Credentials{}, fmt.Errorf("prompt credentials: %w", err)
		}
		username = strings.TrimSpace(username)
		if username == "" || password == "" {
			return Credentials{}, ErrMissing
		}
	}
	return Credentials{
		Username: username,
		Password: memguard.NewEnclave([]byte(password)),
	}, nil
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FormPrompter asks with a huh form on the terminal.
type FormPrompter struct{}

// Prompt shows an input for each empty field.
func (FormPrompter) Prompt(ctx context.Context, username, password string) (string, string, error) {
	var fields []huh.Field
	if username == "" {
		fields = append(fields, huh.NewInput().
			Title("FamilySearch username").
			Value(&username).
			Validate(requireValue("username")))
	}
	if password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Validate(requireValue("password")))
	}
	if len(fields) == 0 {
		return username, password, nil
	}
	form := huh.NewForm(huh.NewGroup(fields...)).WithOutput(os.Stderr)
	if err := form.RunWithContext(ctx); err != nil {
		return "", "", err
	}
	return username, password, nil
}

func requireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
