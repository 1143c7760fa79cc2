package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/tonimelisma/notesync/internal/note"
)

const (
	fileFormatVersion = 1
	filePerms         = 0o600
	dirPerms          = 0o700
)

type fileSnapshot struct {
	Version  int          `json:"version"`
	SyncedAt int64        `json:"synced_at,omitempty"`
	Notes    []*note.Note `json:"notes"`
}

// FileStore keeps snapshots in a single JSON document, replaced atomically
// on every save.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the snapshot. A missing or empty file yields an empty one.
func (s *FileStore) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &Snapshot{}, nil
	}

	var fsnap fileSnapshot
	if err := json.Unmarshal(data, &fsnap); err != nil {
		return nil, fmt.Errorf("cache: decoding %s: %w", s.path, err)
	}

	if fsnap.Version != fileFormatVersion {
		return nil, fmt.Errorf("cache: %s: unsupported format version %d", s.path, fsnap.Version)
	}

	snap := &Snapshot{Notes: fsnap.Notes}
	if fsnap.SyncedAt != 0 {
		snap.SyncedAt = time.Unix(0, fsnap.SyncedAt)
	}

	s.logger.Debug("note cache loaded", slog.String("path", s.path), slog.Int("notes", len(snap.Notes)))

	return snap, nil
}

// Save replaces the file with snap.
func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	fsnap := fileSnapshot{Version: fileFormatVersion, Notes: snap.Notes}
	if fsnap.Notes == nil {
		fsnap.Notes = []*note.Note{}
	}

	if !snap.SyncedAt.IsZero() {
		fsnap.SyncedAt = snap.SyncedAt.UnixNano()
	}

	data, err := json.MarshalIndent(fsnap, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encoding snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerms); err != nil {
		return fmt.Errorf("cache: creating directory for %s: %w", s.path, err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("cache: writing %s: %w", s.path, err)
	}

	// atomic.WriteFile keeps the mode of an existing file but not of a new one.
	if err := os.Chmod(s.path, filePerms); err != nil {
		return fmt.Errorf("cache: setting permissions on %s: %w", s.path, err)
	}

	s.logger.Debug("note cache saved", slog.String("path", s.path), slog.Int("notes", len(snap.Notes)))

	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
