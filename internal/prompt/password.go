package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrNoTerminal is returned when a question needs a terminal and none is
// attached.
var ErrNoTerminal = errors.New("prompt: no terminal")

// Credentials asks for the account email and password. A non-empty email is
// shown but not asked for again.
func Credentials(ctx context.Context, in, out *os.File, email string) (string, string, error) {
	if !isatty.IsTerminal(in.Fd()) || !isatty.IsTerminal(out.Fd()) {
		return "", "", ErrNoTerminal
	}

	var password string

	var fields []huh.Field

	if email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Validate(notEmpty("email")).
			Value(&email))
	}

	fields = append(fields, huh.NewInput().
		Title("Password").
		Description(email).
		EchoMode(huh.EchoModePassword).
		Validate(notEmpty("password")).
		Value(&password))

	form := huh.NewForm(huh.NewGroup(fields...)).WithInput(in).WithOutput(out)
	if err := form.RunWithContext(ctx); err != nil {
		return "", "", fmt.Errorf("prompt: reading credentials: %w", err)
	}

	return email, password, nil
}

func notEmpty(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", what)
		}

		return nil
	}
}
