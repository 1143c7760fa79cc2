package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/notesync/internal/config"
	"github.com/tonimelisma/notesync/internal/prompt"
	"github.com/tonimelisma/notesync/internal/simplenote"
	"github.com/tonimelisma/notesync/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Simplenote and save the session",
		Long: `Sign in with your Simplenote email and password. The password is read
from NOTESYNC_PASSWORD when set, otherwise asked for on the terminal.
The email is remembered in the config file.`,
		RunE: runLogin,
	}

	cmd.Flags().String("username", "", "account email (defaults to account.username)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the account of the saved session",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	logger := cc.Logger

	email := cc.Cfg.Username
	if cmd.Flags().Changed("username") {
		email, _ = cmd.Flags().GetString("username")
	}

	password := cc.Cfg.Password

	if password == "" {
		var err error

		email, password, err = prompt.Credentials(ctx, os.Stdin, os.Stderr, email)
		if errors.Is(err, prompt.ErrNoTerminal) {
			return fmt.Errorf("no password given: set %s or run login in a terminal", config.EnvPassword)
		}

		if err != nil {
			return err
		}
	}

	if email == "" {
		return fmt.Errorf("no account given: pass --username or set %s", config.EnvUsername)
	}

	logger.Info("login started", "username", email)

	tok, err := simplenote.Login(ctx, defaultHTTPClient(), cc.Cfg.AuthURL, email, password)
	if err != nil {
		return err
	}

	if err := tokenfile.Save(cc.Cfg.TokenPath, email, tok); err != nil {
		return err
	}

	if err := config.SetUsername(cc.Cfg.ConfigPath, email); err != nil {
		return fmt.Errorf("saving username: %w", err)
	}

	logger.Info("login successful", "username", email)
	cc.Statusf("Logged in as %s.\n", email)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := simplenote.Logout(cc.Cfg.TokenPath, cc.Logger); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Username string    `json:"username"`
	Expiry   time.Time `json:"expiry"`
	Valid    bool      `json:"valid"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	tf, err := tokenfile.Load(cc.Cfg.TokenPath)
	if err != nil {
		return err
	}

	if tf == nil {
		return fmt.Errorf("not logged in, run 'notesync login' first")
	}

	out := whoamiOutput{Username: tf.Username, Expiry: tf.Token.Expiry, Valid: tf.Token.Valid()}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	printWhoamiText(cmd.OutOrStdout(), out)

	return nil
}

func printWhoamiText(w io.Writer, out whoamiOutput) {
	fmt.Fprintf(w, "User:    %s\n", out.Username)

	state := "valid"
	if !out.Valid {
		state = "expired"
	}

	fmt.Fprintf(w, "Session: %s (until %s)\n", state, formatTime(out.Expiry))
}
