// Package sync keeps the local note cache consistent with the server. Every
// remote call runs as a task on a single queue; task callbacks reconcile
// server metadata with the cache, download stale content in priority order,
// and apply the conflict policy to open notes with local edits.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/queue"
)

// DefaultLabel prefixes every status text.
const DefaultLabel = "notesync"

// EngineConfig holds the options for NewEngine.
type EngineConfig struct {
	Remote       Remote       // required
	Cache        *cache.Cache // required
	Store        cache.Store  // nil skips persistence
	Editor       Editor       // nil: nothing is ever open
	Decider      Decider      // nil rejects every overwrite
	Namer        *note.Namer  // nil: no extension rules
	Sink         queue.StatusSink
	Scheduler    queue.Scheduler
	Label        string
	PollInterval time.Duration
	ClearDelay   time.Duration
	FetchWorkers int
	OnConflict   ConflictPolicy
	Logger       *slog.Logger
}

// Engine is the note sync service. One Engine owns the cache for the
// lifetime of the process; all cache mutations happen in its task callbacks.
type Engine struct {
	ctx     context.Context
	remote  Remote
	cache   *cache.Cache
	store   cache.Store
	editor  Editor
	decider Decider
	namer   *note.Namer
	queue   *queue.Queue
	fetches *FetchGroup
	policy  ConflictPolicy
	label   string
	pushes  *pushGuard
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewEngine creates an engine whose tasks run under ctx. Canceling ctx
// aborts in-flight remote calls.
func NewEngine(ctx context.Context, cfg *EngineConfig) (*Engine, error) {
	if cfg.Remote == nil {
		return nil, errors.New("sync: engine needs a remote")
	}

	if cfg.Cache == nil {
		return nil, errors.New("sync: engine needs a cache")
	}

	policy, err := ParseConflictPolicy(string(cfg.OnConflict))
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		ctx:     ctx,
		remote:  cfg.Remote,
		cache:   cfg.Cache,
		store:   cfg.Store,
		editor:  cfg.Editor,
		decider: cfg.Decider,
		namer:   cfg.Namer,
		fetches: NewFetchGroup(cfg.Remote, cfg.FetchWorkers),
		policy:  policy,
		label:   cfg.Label,
		pushes:  newPushGuard(logger),
		logger:  logger,
		nowFunc: time.Now,
	}

	if e.editor == nil {
		e.editor = noEditor{}
	}

	if e.decider == nil {
		e.decider = rejectDecider{}
	}

	if e.namer == nil {
		if e.namer, err = note.NewNamer(nil); err != nil {
			return nil, fmt.Errorf("sync: creating namer: %w", err)
		}
	}

	if e.label == "" {
		e.label = DefaultLabel
	}

	e.queue = queue.New(ctx, queue.Config{
		Sink:         cfg.Sink,
		Scheduler:    cfg.Scheduler,
		PollInterval: cfg.PollInterval,
		ClearDelay:   cfg.ClearDelay,
		Logger:       logger,
	})

	return e, nil
}

// IsRunning reports whether any task is queued or in flight.
func (e *Engine) IsRunning() bool {
	return e.queue.IsRunning()
}

// WaitIdle blocks until the queue has drained or ctx is done.
func (e *Engine) WaitIdle(ctx context.Context) error {
	return e.queue.WaitIdle(ctx)
}

// Notes returns a copy of the cached notes in display order.
func (e *Engine) Notes() []*note.Note {
	return e.cache.Snapshot().Notes
}

// Sync queues a full sync cycle: list, reconcile, then one content download
// per priority class. It returns the cycle ID used in log records.
func (e *Engine) Sync() string {
	cycle := uuid.NewString()

	e.logger.Info("sync started", slog.String("cycle", cycle))

	op := listTask(e.remote, e.label).
		OnSuccess(func(resumes []note.Resume) {
			e.onNoteList(cycle, resumes)
		}).
		OnError(func(err error) {
			e.logger.Warn("listing notes failed",
				slog.String("cycle", cycle),
				slog.String("error", err.Error()),
			)
		})

	e.queue.Submit(op)

	return cycle
}

// SyncIfIdle starts a sync unless the queue is busy.
func (e *Engine) SyncIfIdle() bool {
	if e.queue.IsRunning() {
		e.logger.Info("sync omitted", slog.Int("pending", e.queue.Pending()))
		return false
	}

	e.Sync()

	return true
}

// RunPeriodic calls SyncIfIdle every interval until ctx is done. A
// non-positive interval disables periodic syncs; RunPeriodic then only waits
// for ctx.
func (e *Engine) RunPeriodic(ctx context.Context, every time.Duration) {
	if every <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SyncIfIdle()
		}
	}
}

func (e *Engine) onNoteList(cycle string, resumes []note.Resume) {
	var (
		delta Delta
		stale []*note.Note
	)

	now := e.nowFunc()

	e.cache.Do(func(tx cache.Tx) {
		delta = Reconcile(tx, resumes)
		tx.Sort()
		tx.MarkSynced(now)

		for _, n := range tx.All() {
			if n.NeedsUpdate {
				stale = append(stale, n.Clone())
			}
		}
	})

	e.logger.Info("notes reconciled",
		slog.String("cycle", cycle),
		slog.Int("created", len(delta.Created)),
		slog.Int("updated", len(delta.Updated)),
		slog.Int("removed", len(delta.Removed)),
		slog.Int("current", delta.Current),
	)

	e.persist()

	if len(stale) == 0 {
		return
	}

	buffers, err := e.editor.OpenBuffers()
	if err != nil {
		e.logger.Warn("listing open notes failed",
			slog.String("cycle", cycle),
			slog.String("error", err.Error()),
		)
	}

	for _, plan := range planFetches(stale, buffers) {
		e.logger.Debug("queueing content download",
			slog.String("cycle", cycle),
			slog.String("class", plan.class.String()),
			slog.Int("notes", len(plan.notes)),
		)

		e.queue.Submit(e.fetchPlanTask(cycle, plan))
	}
}

func (e *Engine) fetchPlanTask(cycle string, plan fetchPlan) *queue.Op[[]*note.Note] {
	return fetchManyTask(e.fetches, e.label, plan.keys()).
		OnSuccess(func(fetched []*note.Note) {
			e.onFetched(cycle, plan, fetched)
		}).
		OnError(func(err error) {
			e.logger.Warn("downloading note contents failed",
				slog.String("cycle", cycle),
				slog.String("class", plan.class.String()),
				slog.Int("notes", len(plan.notes)),
				slog.String("error", err.Error()),
			)
		})
}

// bufferWrite is a pending Editor.WriteNote call.
type bufferWrite struct {
	note        *note.Note
	oldFilename string
}

func (e *Engine) onFetched(cycle string, plan fetchPlan, fetched []*note.Note) {
	res := e.resolve(e.ctx, plan, fetched)
	if !res.merge {
		return
	}

	stamp := note.Timestamp(e.nowFunc())

	var (
		writes []bufferWrite
		merged int
	)

	e.cache.Do(func(tx cache.Tx) {
		for _, f := range fetched {
			cur, ok := tx.Get(f.Key)
			if !ok {
				// Removed while the batch was downloading.
				continue
			}

			if !cur.NeedsUpdate {
				// Refreshed since the plan was made, e.g. by OpenNote.
				continue
			}

			n := f.Clone()
			e.markFetched(n, stamp)

			_, open := plan.buffers[f.Key]

			switch {
			case open && res.overwrite(f.Key):
				writes = append(writes, bufferWrite{note: n.Clone(), oldFilename: cur.Filename})
			case open:
				// The buffer keeps its content, so it keeps its name too.
				n.Filename = cur.Filename
			}

			tx.Put(n)
			e.pushes.forget(f.Key)
			merged++
		}

		tx.Sort()
	})

	e.writeBuffers(writes)
	e.persist()

	e.logger.Info("note contents merged",
		slog.String("cycle", cycle),
		slog.String("class", plan.class.String()),
		slog.Int("merged", merged),
		slog.Int("buffers_written", len(writes)),
	)
}

// markFetched records that n holds freshly downloaded content.
func (e *Engine) markFetched(n *note.Note, stamp float64) {
	n.NeedsUpdate = false
	n.LocalModifyDate = stamp
	n.Filename = e.namer.Filename(n)
}

func (e *Engine) writeBuffers(writes []bufferWrite) {
	for _, w := range writes {
		if err := e.editor.WriteNote(w.note, w.oldFilename); err != nil {
			e.logger.Warn("writing note buffer failed",
				slog.String("key", w.note.Key),
				slog.String("filename", w.note.Filename),
				slog.String("error", err.Error()),
			)
		}
	}
}

// persist saves the cache. Failures are logged; the next mutation retries.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}

	if err := e.cache.Persist(context.WithoutCancel(e.ctx), e.store); err != nil {
		e.logger.Error("saving note cache failed", slog.String("error", err.Error()))
	}
}
