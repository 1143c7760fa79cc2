package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/notesync/internal/workspace"
)

// shutdownDrainTimeout bounds how long watch waits for queued tasks after
// a shutdown signal.
const shutdownDrainTimeout = 10 * time.Second

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep notes in sync and push saved note files",
		Long: `Run in the foreground: sync now and every sync.sync_every, push note
files in the workspace when they are saved, and serve status updates on
status.listen_addr when set.

Send SIGHUP (or run notesync sync) to sync immediately. SIGINT or SIGTERM
stops after pending operations finish; a second signal quits at once.`,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	cfg := cc.Cfg

	ctx := shutdownContext(cmd.Context(), logger)

	a, err := openApp(ctx, cc, appOptions{statusHub: true})
	if err != nil {
		return err
	}

	defer a.Close()

	pruned, err := a.engine.PruneWorkspace()
	if err != nil {
		logger.Warn("pruning workspace failed", slog.String("error", err.Error()))
	} else if pruned > 0 {
		logger.Info("pruned workspace", slog.Int("files", pruned))
	}

	logger.Info("watch started",
		slog.String("workspace", cfg.WorkspaceDir),
		slog.Duration("sync_every", cfg.SyncEvery),
		slog.Duration("autosave_debounce", cfg.AutosaveDebounce),
	)

	a.engine.Sync()

	watcher := workspace.NewWatcher(a.dir, a.engine.SaveBuffer, cfg.AutosaveDebounce, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Edits made while nothing was watching go up once the first
		// cycle has settled any conflicts.
		if err := a.engine.WaitIdle(gctx); err != nil {
			return nil
		}

		queued, err := a.engine.PushBuffers()
		if err != nil {
			logger.Warn("pushing offline edits failed", slog.String("error", err.Error()))
		} else if queued > 0 {
			logger.Info("pushing offline edits", slog.Int("notes", queued))
		}

		return nil
	})

	g.Go(func() error {
		return watcher.Run(gctx)
	})

	g.Go(func() error {
		a.engine.RunPeriodic(gctx, cfg.SyncEvery)
		return nil
	})

	g.Go(func() error {
		reqs := syncRequests(gctx)

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-reqs:
				logger.Info("sync requested")
				a.engine.SyncIfIdle()
			}
		}
	})

	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownDrainTimeout)
	defer cancel()

	if err := a.drain(drainCtx); err != nil {
		logger.Warn("shutdown before pending operations finished", slog.String("error", err.Error()))
	}

	logger.Info("watch stopped")

	return runErr
}
