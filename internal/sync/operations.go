package sync

import (
	"fmt"
	"log/slog"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/queue"
)

// CreateNote queues the creation of a note with content. On success the
// note is cached and opened in the editor.
func (e *Engine) CreateNote(content string) *queue.Op[*note.Note] {
	op := createTask(e.remote, e.label, content)

	op.OnSuccess(func(created *note.Note) {
		n := created.Clone()
		e.markFetched(n, note.Timestamp(e.nowFunc()))

		e.cache.Do(func(tx cache.Tx) {
			tx.Put(n)
			tx.Sort()
		})

		e.writeBuffers([]bufferWrite{{note: n.Clone()}})
		e.persist()

		e.logger.Info("note created", slog.String("key", n.Key))
	}).OnError(func(err error) {
		e.logger.Warn("creating note failed", slog.String("error", err.Error()))
	})

	e.queue.Submit(op)

	return op
}

// DeleteNote queues moving key to the server's trash. On success the note
// leaves the cache and its buffer is discarded.
func (e *Engine) DeleteNote(key string) (*queue.Op[struct{}], error) {
	if _, ok := e.cache.Get(key); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNote, key)
	}

	op := deleteTask(e.remote, e.label, key)

	op.OnSuccess(func(struct{}) {
		var filename string

		e.cache.Do(func(tx cache.Tx) {
			if n, ok := tx.Get(key); ok {
				filename = n.Filename
				tx.Remove(key)
			}
		})

		if filename != "" {
			if err := e.editor.RemoveNote(filename); err != nil {
				e.logger.Warn("removing note buffer failed",
					slog.String("key", key),
					slog.String("filename", filename),
					slog.String("error", err.Error()),
				)
			}
		}

		e.persist()

		e.logger.Info("note deleted", slog.String("key", key))
	}).OnError(func(err error) {
		e.logger.Warn("deleting note failed", slog.String("key", key), slog.String("error", err.Error()))
	})

	e.queue.Submit(op)

	return op, nil
}

// UpdateNote queues pushing content as the new body of key. The server's
// answer is merged with the pushed content; a buffer whose derived filename
// changed is renamed.
func (e *Engine) UpdateNote(key, content string) (*queue.Op[*note.Note], error) {
	cached, ok := e.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNote, key)
	}

	pushed := cached.Clone()
	pushed.Content = content

	op := updateTask(e.remote, e.label, pushed.Clone(), e.nowFunc)

	op.OnSuccess(func(res *note.Note) {
		e.onUpdated(pushed, res)
		e.pushes.forget(key)
	}).OnError(func(err error) {
		e.pushes.failure(key, content, err.Error())
		e.logger.Warn("updating note failed", slog.String("key", key), slog.String("error", err.Error()))
	})

	e.queue.Submit(op)

	return op, nil
}

func (e *Engine) onUpdated(pushed, res *note.Note) {
	n := pushed.Clone()
	n.ApplyResume(res.Resume())

	if res.Content != "" {
		n.Content = res.Content
	}

	e.markFetched(n, note.Timestamp(e.nowFunc()))

	var (
		oldFilename string
		cached      bool
	)

	e.cache.Do(func(tx cache.Tx) {
		cur, ok := tx.Get(n.Key)
		if !ok {
			return
		}

		cached = true
		oldFilename = cur.Filename

		tx.Put(n)
		tx.Sort()
	})

	if !cached {
		e.logger.Info("updated note is no longer cached", slog.String("key", n.Key))
		return
	}

	// Only touch the buffer when the server changed something the user sees.
	if oldFilename != "" && (oldFilename != n.Filename || n.Content != pushed.Content) {
		e.writeBuffers([]bufferWrite{{note: n.Clone(), oldFilename: oldFilename}})
	}

	e.persist()

	e.logger.Info("note updated", slog.String("key", n.Key), slog.Int("version", n.Version))
}

// SaveBuffer handles a saved editor buffer: content that differs from the
// cache is pushed as an update. An edit the server keeps rejecting is held
// back until it changes or pushRetryAfter passes.
func (e *Engine) SaveBuffer(filename, content string) error {
	n, ok := e.cache.FindByFilename(filename)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNote, filename)
	}

	if n.Content == content {
		return nil
	}

	if e.pushes.blocked(n.Key, content) {
		e.logger.Debug("edit held back after repeated push failures", slog.String("key", n.Key))
		return nil
	}

	_, err := e.UpdateNote(n.Key, content)

	return err
}

// OpenNote writes key to the editor. Notes whose content is missing or
// stale are downloaded first, in which case the returned task completes
// once the note is open; otherwise the returned task is nil.
func (e *Engine) OpenNote(key string) (*queue.Op[*note.Note], error) {
	cached, ok := e.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNote, key)
	}

	if cached.Fetched() && !cached.NeedsUpdate {
		oldFilename := cached.Filename
		cached.Filename = e.namer.Filename(cached)

		if cached.Filename != oldFilename {
			e.cache.Do(func(tx cache.Tx) {
				if cur, ok := tx.Get(key); ok {
					cur.Filename = cached.Filename
				}
			})
			e.persist()
		}

		if err := e.editor.WriteNote(cached, oldFilename); err != nil {
			return nil, fmt.Errorf("sync: opening %s: %w", key, err)
		}

		return nil, nil
	}

	op := fetchOneTask(e.remote, e.label, key)

	op.OnSuccess(func(fetched *note.Note) {
		n := fetched.Clone()
		e.markFetched(n, note.Timestamp(e.nowFunc()))

		var oldFilename string

		e.cache.Do(func(tx cache.Tx) {
			if cur, ok := tx.Get(key); ok {
				oldFilename = cur.Filename
			}

			tx.Put(n)
			tx.Sort()
		})

		e.writeBuffers([]bufferWrite{{note: n.Clone(), oldFilename: oldFilename}})
		e.persist()
	}).OnError(func(err error) {
		e.logger.Warn("downloading note failed", slog.String("key", key), slog.String("error", err.Error()))
	})

	e.queue.Submit(op)

	return op, nil
}

// PushBuffers saves every open buffer whose content differs from the cache,
// picking up edits made while nothing was watching. It returns the number
// of updates queued.
func (e *Engine) PushBuffers() (int, error) {
	buffers, err := e.editor.OpenBuffers()
	if err != nil {
		return 0, fmt.Errorf("sync: listing open notes: %w", err)
	}

	queued := 0

	for _, b := range buffers {
		n, ok := e.cache.FindByFilename(b.Filename)
		if !ok || n.Content == b.Content || !n.Fetched() {
			continue
		}

		if err := e.SaveBuffer(b.Filename, b.Content); err != nil {
			return queued, err
		}

		queued++
	}

	return queued, nil
}

// Content returns the cached content of key. Notes that were listed but
// never downloaded return ErrNotFetched.
func (e *Engine) Content(key string) (string, error) {
	n, ok := e.cache.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNote, key)
	}

	if !n.Fetched() {
		return "", fmt.Errorf("%w: %s", ErrNotFetched, key)
	}

	return n.Content, nil
}

// PruneWorkspace discards buffers that belong to no cached note and returns
// how many were removed.
func (e *Engine) PruneWorkspace() (int, error) {
	buffers, err := e.editor.OpenBuffers()
	if err != nil {
		return 0, fmt.Errorf("sync: listing open notes: %w", err)
	}

	known := make(map[string]bool)
	for _, n := range e.cache.Snapshot().Notes {
		if n.Filename != "" {
			known[n.Filename] = true
		}
	}

	removed := 0

	for _, b := range buffers {
		if known[b.Filename] {
			continue
		}

		if err := e.editor.RemoveNote(b.Filename); err != nil {
			return removed, fmt.Errorf("sync: pruning %s: %w", b.Filename, err)
		}

		e.logger.Info("pruned orphan note file", slog.String("filename", b.Filename))
		removed++
	}

	return removed, nil
}
