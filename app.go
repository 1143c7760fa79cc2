package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/config"
	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/prompt"
	"github.com/tonimelisma/notesync/internal/queue"
	"github.com/tonimelisma/notesync/internal/simplenote"
	"github.com/tonimelisma/notesync/internal/status"
	"github.com/tonimelisma/notesync/internal/sync"
	"github.com/tonimelisma/notesync/internal/workspace"
)

// app is a fully wired engine for one command run.
type app struct {
	cfg    *config.Resolved
	logger *slog.Logger
	engine *sync.Engine
	cache  *cache.Cache
	store  cache.Store
	dir    *workspace.Dir
	hub    *status.Hub

	unlock func()
}

// appOptions selects the optional parts of the wiring.
type appOptions struct {
	// statusHub serves status changes over websocket when status.listen_addr
	// is set.
	statusHub bool
}

// openApp takes the process lock, restores the session and the cache, and
// builds the engine. Tasks run under ctx. Callers must Close the app.
func openApp(ctx context.Context, cc *CLIContext, opts appOptions) (*app, error) {
	a := &app{cfg: cc.Cfg, logger: cc.Logger}

	if err := a.wire(ctx, cc, opts); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) wire(ctx context.Context, cc *CLIContext, opts appOptions) error {
	cfg := cc.Cfg
	logger := cc.Logger

	var err error

	if a.unlock, err = writePIDFile(cfg.PIDPath); err != nil {
		return err
	}

	remote, err := newRemote(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if a.store, err = cache.Open(cfg.CacheBackend, cfg.CachePath, logger); err != nil {
		return fmt.Errorf("opening note cache: %w", err)
	}

	snap, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading note cache: %w", err)
	}

	a.cache = cache.New(snap)

	if a.dir, err = workspace.Open(cfg.WorkspaceDir, logger); err != nil {
		return err
	}

	namer, err := note.NewNamer(cfg.ExtensionRules)
	if err != nil {
		return err
	}

	sinks := []queue.StatusSink{status.NewLog(logger)}
	if !cc.Flags.Quiet {
		sinks = append(sinks, status.NewLine(os.Stderr))
	}

	if opts.statusHub && cfg.StatusListenAddr != "" {
		a.hub = status.NewHub(logger)
		if err := a.hub.ListenAndServe(cfg.StatusListenAddr); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}

		sinks = append(sinks, a.hub)
	}

	engCfg := &sync.EngineConfig{
		Remote:       remote,
		Cache:        a.cache,
		Store:        a.store,
		Editor:       a.dir,
		Namer:        namer,
		Sink:         status.Multi(sinks...),
		PollInterval: cfg.PollInterval,
		ClearDelay:   cfg.StatusClearDelay,
		FetchWorkers: cfg.FetchWorkers,
		OnConflict:   sync.ConflictPolicy(cfg.OnConflict),
		Logger:       logger,
	}

	if engCfg.OnConflict == sync.PolicyAsk {
		engCfg.Decider = prompt.New(os.Stdin, os.Stderr, logger)
	}

	if a.engine, err = sync.NewEngine(ctx, engCfg); err != nil {
		return err
	}

	return nil
}

// newRemote restores the saved session and returns the note server client.
func newRemote(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*simplenote.Client, error) {
	httpClient := defaultHTTPClient()

	ts, username, err := simplenote.TokenSourceFromPath(ctx, simplenote.SessionConfig{
		TokenPath:  cfg.TokenPath,
		AuthURL:    cfg.AuthURL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		if errors.Is(err, simplenote.ErrNotLoggedIn) {
			return nil, fmt.Errorf("not logged in, run 'notesync login' first")
		}

		return nil, err
	}

	return simplenote.NewClient(cfg.APIURL, username, httpClient, ts, logger), nil
}

// drain waits for every queued task to finish.
func (a *app) drain(ctx context.Context) error {
	if err := a.engine.WaitIdle(ctx); err != nil {
		return fmt.Errorf("waiting for pending operations: %w", err)
	}

	return nil
}

// Close releases the cache, the status server and the process lock.
func (a *app) Close() {
	if a.hub != nil {
		if err := a.hub.Close(); err != nil {
			a.logger.Warn("closing status server", slog.String("error", err.Error()))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing note cache", slog.String("error", err.Error()))
		}
	}

	if a.unlock != nil {
		a.unlock()
	}
}
