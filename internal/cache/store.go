package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/notesync/internal/note"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Snapshot is the persisted form of the cache.
type Snapshot struct {
	Notes    []*note.Note
	SyncedAt time.Time // zero until a sync cycle completed
}

// Store persists whole-cache snapshots. Save replaces the previous snapshot
// atomically: a concurrent Load sees either the old or the new one.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		s, err := NewSQLiteStore(path, logger)
		if err != nil {
			return nil, err
		}

		return s, nil
	case BackendJSON:
		return NewFileStore(path, logger), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", backend)
	}
}
