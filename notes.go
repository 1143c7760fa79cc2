package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/config"
	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/queue"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List cached notes",
		Long:  "List the notes in the local cache, pinned first, then most recently modified.",
		Args:  cobra.NoArgs,
		RunE:  runLs,
	}

	cmd.Flags().StringP("tag", "t", "", "only notes with this tag")

	return cmd
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <key|filename>",
		Short: "Print the cached content of a note",
		Args:  cobra.ExactArgs(1),
		RunE:  runCat,
	}
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [content...]",
		Short: "Create a note and open it in the workspace",
		Long:  "Create a note from the arguments, or from standard input when none are given.",
		RunE:  runNew,
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <key|filename>",
		Short: "Write a note to the workspace, downloading it if needed",
		Args:  cobra.ExactArgs(1),
		RunE:  runOpen,
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>...",
		Short: "Upload edited note files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPush,
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key|filename>...",
		Short: "Move notes to the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRm,
	}
}

// noteKey accepts a note key or a workspace filename.
func noteKey(arg string) string {
	if k := note.KeyFromFilename(filepath.Base(arg)); k != "" {
		return k
	}

	return arg
}

// loadSnapshot reads the persisted cache without taking the process lock.
func loadSnapshot(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*cache.Snapshot, error) {
	store, err := cache.Open(cfg.CacheBackend, cfg.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening note cache: %w", err)
	}

	defer store.Close()

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading note cache: %w", err)
	}

	return snap, nil
}

// lsEntry is the JSON schema for one note in `ls --json`.
type lsEntry struct {
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Filename string    `json:"filename,omitempty"`
	Modified time.Time `json:"modified"`
	Tags     []string  `json:"tags,omitempty"`
	Pinned   bool      `json:"pinned,omitempty"`
	Stale    bool      `json:"stale,omitempty"`
	Size     int       `json:"size"`
}

func runLs(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	snap, err := loadSnapshot(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}

	tag, _ := cmd.Flags().GetString("tag")

	var (
		entries  = make([]lsEntry, 0, len(snap.Notes))
		modified []string
	)

	for _, n := range snap.Notes {
		if tag != "" && !hasTag(n, tag) {
			continue
		}

		mod := note.Time(n.ModifyDate)

		entries = append(entries, lsEntry{
			Key:      n.Key,
			Title:    n.Title(),
			Filename: n.Filename,
			Modified: mod,
			Tags:     n.Tags,
			Pinned:   n.Pinned(),
			Stale:    n.NeedsUpdate,
			Size:     len(n.Content),
		})
		modified = append(modified, formatTime(mod))
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	if len(entries) == 0 {
		cc.Statusf("No notes cached. Run notesync sync first.\n")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{e.Key, lsFlags(e), modified[i], formatSize(int64(e.Size)), e.Title})
	}

	printTable(cmd.OutOrStdout(), []string{"KEY", "FLAGS", "MODIFIED", "SIZE", "TITLE"}, rows)

	return nil
}

func hasTag(n *note.Note, tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// lsFlags renders P for pinned and S for stale content.
func lsFlags(e lsEntry) string {
	flags := []byte("--")
	if e.Pinned {
		flags[0] = 'P'
	}

	if e.Stale {
		flags[1] = 'S'
	}

	return string(flags)
}

func runCat(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	a, err := openApp(ctx, cc, appOptions{})
	if err != nil {
		return err
	}

	defer a.Close()

	content, err := a.engine.Content(noteKey(args[0]))
	if err != nil {
		return err
	}

	_, err = io.WriteString(cmd.OutOrStdout(), content)

	return err
}

func runNew(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	content := strings.Join(args, " ")

	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading note content: %w", err)
		}

		content = string(data)
	}

	a, err := openApp(ctx, cc, appOptions{})
	if err != nil {
		return err
	}

	defer a.Close()

	op := a.engine.CreateNote(content)

	if err := a.drain(ctx); err != nil {
		return err
	}

	n, err := op.Result()
	if err != nil {
		return fmt.Errorf("creating note: %w", err)
	}

	cached, ok := a.cache.Get(n.Key)
	if !ok {
		return fmt.Errorf("created note %s is missing from the cache", n.Key)
	}

	return printNoteLocation(cmd, cc, cached, a.dir.Path(cached.Filename))
}

// noteLocation is the JSON schema for `new --json` and `open --json`.
type noteLocation struct {
	Key  string `json:"key"`
	Path string `json:"path"`
}

func printNoteLocation(cmd *cobra.Command, cc *CLIContext, n *note.Note, path string) error {
	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), noteLocation{Key: n.Key, Path: path})
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)

	return nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)
	key := noteKey(args[0])

	a, err := openApp(ctx, cc, appOptions{})
	if err != nil {
		return err
	}

	defer a.Close()

	op, err := a.engine.OpenNote(key)
	if err != nil {
		return err
	}

	if op != nil {
		if err := a.drain(ctx); err != nil {
			return err
		}

		if _, err := op.Result(); err != nil {
			return fmt.Errorf("downloading note: %w", err)
		}
	}

	n, ok := a.cache.Get(key)
	if !ok {
		return fmt.Errorf("note %s is no longer cached", key)
	}

	return printNoteLocation(cmd, cc, n, a.dir.Path(n.Filename))
}

func runPush(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	a, err := openApp(ctx, cc, appOptions{})
	if err != nil {
		return err
	}

	defer a.Close()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		if err := a.engine.SaveBuffer(filepath.Base(path), string(data)); err != nil {
			return err
		}
	}

	return a.drain(ctx)
}

func runRm(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	a, err := openApp(ctx, cc, appOptions{})
	if err != nil {
		return err
	}

	defer a.Close()

	type pending struct {
		key string
		op  *queue.Op[struct{}]
	}

	var ops []pending

	for _, arg := range args {
		key := noteKey(arg)

		op, err := a.engine.DeleteNote(key)
		if err != nil {
			return err
		}

		ops = append(ops, pending{key: key, op: op})
	}

	if err := a.drain(ctx); err != nil {
		return err
	}

	var failed int

	for _, p := range ops {
		if _, err := p.op.Result(); err != nil {
			cc.Logger.Warn("deleting note failed", slog.String("key", p.key), slog.String("error", err.Error()))
			failed++

			continue
		}

		cc.Statusf("Deleted %s\n", p.key)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d notes could not be deleted", failed, len(ops))
	}

	return nil
}
