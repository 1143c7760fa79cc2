package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/tokenfile"
)

// Token state constants for status reporting.
const (
	tokenStateMissing = "missing"
	tokenStateExpired = "expired"
	tokenStateValid   = "valid"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account, cache and watcher status",
		Long: `Display the session state, how many notes are cached and how many of
them still need a download, when the last sync completed, and whether
notesync watch is running. Reads local state only.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	Username   string    `json:"username,omitempty"`
	TokenState string    `json:"token_state"`
	Workspace  string    `json:"workspace"`
	Notes      int       `json:"notes"`
	Stale      int       `json:"stale"`
	Pinned     int       `json:"pinned"`
	SyncedAt   time.Time `json:"synced_at,omitzero"`
	WatchPID   int       `json:"watch_pid,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	out := statusOutput{
		Username:   cc.Cfg.Username,
		TokenState: tokenStateMissing,
		Workspace:  cc.Cfg.WorkspaceDir,
	}

	tf, err := tokenfile.Load(cc.Cfg.TokenPath)
	if err != nil {
		cc.Logger.Debug("could not read session for status", "error", err)
	}

	if tf != nil {
		out.Username = tf.Username
		out.TokenState = tokenStateExpired

		if tf.Token.Valid() {
			out.TokenState = tokenStateValid
		}
	}

	snap, err := loadSnapshot(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}

	summarize(&out, snap)

	if pid, ok := runningPID(cc.Cfg.PIDPath); ok {
		out.WatchPID = pid
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	printStatusText(cmd.OutOrStdout(), out)

	return nil
}

func summarize(out *statusOutput, snap *cache.Snapshot) {
	out.Notes = len(snap.Notes)
	out.SyncedAt = snap.SyncedAt

	for _, n := range snap.Notes {
		if n.NeedsUpdate {
			out.Stale++
		}

		if n.Pinned() {
			out.Pinned++
		}
	}
}

func printStatusText(w io.Writer, out statusOutput) {
	account := out.Username
	if account == "" {
		account = "(none)"
	}

	fmt.Fprintf(w, "Account:   %s (session %s)\n", account, out.TokenState)
	fmt.Fprintf(w, "Workspace: %s\n", out.Workspace)
	fmt.Fprintf(w, "Notes:     %d cached, %d pinned, %d to download\n", out.Notes, out.Pinned, out.Stale)
	fmt.Fprintf(w, "Last sync: %s\n", formatTime(out.SyncedAt))

	if out.WatchPID != 0 {
		fmt.Fprintf(w, "Watcher:   running (PID %d)\n", out.WatchPID)
	} else {
		fmt.Fprintf(w, "Watcher:   not running\n")
	}
}
