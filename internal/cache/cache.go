// Package cache holds the local replica of the note collection: an in-memory
// Cache mutated by the sync engine, and Stores that persist full snapshots of
// it between runs.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tonimelisma/notesync/internal/note"
)

// Cache is the in-memory note collection, kept in display order.
//
// The sync engine is the sole writer: every mutation happens inside Do, from
// queue callbacks. The RWMutex lets other goroutines (CLI listings, the save
// watcher) read consistent clones while that happens.
type Cache struct {
	mu       sync.RWMutex
	notes    []*note.Note
	byKey    map[string]*note.Note
	syncedAt time.Time
}

// New builds a cache from a loaded snapshot. Tombstoned notes are dropped.
func New(snap *Snapshot) *Cache {
	c := &Cache{byKey: make(map[string]*note.Note)}

	if snap == nil {
		return c
	}

	c.syncedAt = snap.SyncedAt

	for _, n := range snap.Notes {
		Tx{c: c}.Put(n)
	}

	return c
}

// Tx is a write view of the cache, valid only inside the Do callback that
// received it. Its methods do not lock and return live records.
type Tx struct {
	c *Cache
}

// Do runs fn with exclusive access to the cache.
func (c *Cache) Do(fn func(tx Tx)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(Tx{c: c})
}

// Get returns the live record for key.
func (tx Tx) Get(key string) (*note.Note, bool) {
	n, ok := tx.c.byKey[key]
	return n, ok
}

// Put inserts n or replaces the record with the same key. A tombstoned note
// is never stored; putting one removes the key instead.
func (tx Tx) Put(n *note.Note) {
	if n.Deleted {
		tx.Remove(n.Key)
		return
	}

	if _, ok := tx.c.byKey[n.Key]; ok {
		i := slices.IndexFunc(tx.c.notes, func(e *note.Note) bool { return e.Key == n.Key })
		tx.c.notes[i] = n
	} else {
		tx.c.notes = append(tx.c.notes, n)
	}

	tx.c.byKey[n.Key] = n
}

// Remove deletes key, reporting whether it was present.
func (tx Tx) Remove(key string) bool {
	if _, ok := tx.c.byKey[key]; !ok {
		return false
	}

	delete(tx.c.byKey, key)
	tx.c.notes = slices.DeleteFunc(tx.c.notes, func(e *note.Note) bool { return e.Key == key })

	return true
}

// All returns the live records in cache order. The slice is a copy; the
// records are not.
func (tx Tx) All() []*note.Note {
	return slices.Clone(tx.c.notes)
}

// Sort reorders the cache by note.Compare.
func (tx Tx) Sort() {
	note.Sort(tx.c.notes)
}

// MarkSynced records the completion time of a sync cycle.
func (tx Tx) MarkSynced(t time.Time) {
	tx.c.syncedAt = t
}

// Get returns a copy of the record for key.
func (c *Cache) Get(key string) (*note.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.byKey[key]
	if !ok {
		return nil, false
	}

	return n.Clone(), true
}

// FindByFilename maps a workspace filename back to its note: an exact
// filename match first, then the key embedded in the name.
func (c *Cache) FindByFilename(name string) (*note.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, n := range c.notes {
		if n.Filename != "" && n.Filename == name {
			return n.Clone(), true
		}
	}

	if n, ok := c.byKey[note.KeyFromFilename(name)]; ok {
		return n.Clone(), true
	}

	return nil, false
}

// Len returns the number of cached notes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.notes)
}

// Snapshot returns a deep copy of the cache suitable for persisting.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	notes := make([]*note.Note, len(c.notes))
	for i, n := range c.notes {
		notes[i] = n.Clone()
	}

	return &Snapshot{Notes: notes, SyncedAt: c.syncedAt}
}

// Persist writes a snapshot of the cache to store.
func (c *Cache) Persist(ctx context.Context, store Store) error {
	if err := store.Save(ctx, c.Snapshot()); err != nil {
		return fmt.Errorf("cache: persisting %d notes: %w", c.Len(), err)
	}

	return nil
}
