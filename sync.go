package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle",
		Long: `Fetch the note list, download changed notes and update open note files.

When notesync watch is running, it is asked to sync instead.`,
		RunE: runSync,
	}
}

// syncOutput is the JSON schema for `sync --json`.
type syncOutput struct {
	Cycle string `json:"cycle,omitempty"`
	Notes int    `json:"notes"`
	// Delegated is set when a running watcher was asked to sync.
	Delegated bool `json:"delegated,omitempty"`
}

func runSync(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	ctx := shutdownContext(cmd.Context(), logger)

	a, err := openApp(ctx, cc, appOptions{})
	if errors.Is(err, errAlreadyRunning) {
		if err := sendSIGHUP(cc.Cfg.PIDPath); err != nil {
			return err
		}

		logger.Info("asked running watcher to sync")

		if cc.Flags.JSON {
			return printJSON(cmd.OutOrStdout(), syncOutput{Delegated: true})
		}

		cc.Statusf("Asked the running watcher to sync.\n")

		return nil
	}

	if err != nil {
		return err
	}

	defer a.Close()

	cycle := a.engine.Sync()

	if err := a.drain(ctx); err != nil {
		return err
	}

	out := syncOutput{Cycle: cycle, Notes: len(a.engine.Notes())}

	logger.Debug("sync command finished", slog.String("cycle", cycle), slog.Int("notes", out.Notes))

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d notes in sync.\n", out.Notes)

	return nil
}
