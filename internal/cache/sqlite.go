package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/tonimelisma/notesync/internal/note"
)

const (
	sqlLoadNotes = `SELECT key, content, tags, system_tags, modify_date, create_date,
		version, local_modify_date, needs_update, filename
		FROM notes ORDER BY position`

	sqlDeleteNotes = `DELETE FROM notes`

	sqlInsertNote = `INSERT INTO notes
		(key, position, content, tags, system_tags, modify_date, create_date,
		 version, local_modify_date, needs_update, filename)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlLoadSyncedAt = `SELECT synced_at FROM sync_state WHERE id = 1`

	sqlSaveSyncedAt = `INSERT INTO sync_state (id, synced_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET synced_at = excluded.synced_at`
)

// SQLiteStore keeps snapshots in a single SQLite database. Save rewrites
// the notes table inside one transaction.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// dbPragmas are applied to every connection.
const dbPragmas = "_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"

// dbDirPerms matches the token and PID file directories.
const dbDirPerms = 0o700

// NewSQLiteStore opens the database at path, creating its directory, and
// runs migrations.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), dbDirPerms); err != nil {
		return nil, fmt.Errorf("cache: creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", databaseDSN(path))
	if err != nil {
		return nil, fmt.Errorf("cache: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("note cache opened", slog.String("path", path))

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// databaseDSN builds a SQLite URI for path. Characters such as '?' and '#'
// in the path are percent-encoded so they are not read as URI syntax.
func databaseDSN(path string) string {
	u := url.URL{Scheme: "file", Path: path, RawQuery: dbPragmas}
	return u.String()
}

// Load reads the stored snapshot. A fresh database yields an empty one.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, sqlLoadNotes)
	if err != nil {
		return nil, fmt.Errorf("cache: loading notes: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{}

	for rows.Next() {
		n, err := scanNoteRow(rows)
		if err != nil {
			return nil, err
		}

		snap.Notes = append(snap.Notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: iterating note rows: %w", err)
	}

	var syncedAt int64

	err = s.db.QueryRowContext(ctx, sqlLoadSyncedAt).Scan(&syncedAt)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("cache: loading sync state: %w", err)
	default:
		snap.SyncedAt = time.Unix(0, syncedAt)
	}

	s.logger.Debug("note cache loaded", slog.Int("notes", len(snap.Notes)))

	return snap, nil
}

func scanNoteRow(rows *sql.Rows) (*note.Note, error) {
	var (
		n           note.Note
		tags        string
		systemTags  string
		needsUpdate int
		filename    sql.NullString
	)

	if err := rows.Scan(&n.Key, &n.Content, &tags, &systemTags, &n.ModifyDate, &n.CreateDate,
		&n.Version, &n.LocalModifyDate, &needsUpdate, &filename); err != nil {
		return nil, fmt.Errorf("cache: scanning note row: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("cache: decoding tags of %s: %w", n.Key, err)
	}

	if err := json.Unmarshal([]byte(systemTags), &n.SystemTags); err != nil {
		return nil, fmt.Errorf("cache: decoding system tags of %s: %w", n.Key, err)
	}

	if len(n.Tags) == 0 {
		n.Tags = nil
	}

	if len(n.SystemTags) == 0 {
		n.SystemTags = nil
	}

	n.NeedsUpdate = needsUpdate != 0
	n.Filename = filename.String

	return &n, nil
}

// Save replaces the stored snapshot.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqlDeleteNotes); err != nil {
		return fmt.Errorf("cache: clearing notes: %w", err)
	}

	for i, n := range snap.Notes {
		if err := insertNote(ctx, tx, i, n); err != nil {
			return err
		}
	}

	if !snap.SyncedAt.IsZero() {
		if _, err := tx.ExecContext(ctx, sqlSaveSyncedAt, snap.SyncedAt.UnixNano()); err != nil {
			return fmt.Errorf("cache: saving sync state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: committing save: %w", err)
	}

	s.logger.Debug("note cache saved", slog.Int("notes", len(snap.Notes)))

	return nil
}

func insertNote(ctx context.Context, tx *sql.Tx, position int, n *note.Note) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return fmt.Errorf("cache: encoding tags of %s: %w", n.Key, err)
	}

	systemTags, err := encodeTags(n.SystemTags)
	if err != nil {
		return fmt.Errorf("cache: encoding system tags of %s: %w", n.Key, err)
	}

	needsUpdate := 0
	if n.NeedsUpdate {
		needsUpdate = 1
	}

	_, err = tx.ExecContext(ctx, sqlInsertNote,
		n.Key, position, n.Content, tags, systemTags, n.ModifyDate, n.CreateDate,
		n.Version, n.LocalModifyDate, needsUpdate, nullString(n.Filename),
	)
	if err != nil {
		return fmt.Errorf("cache: inserting note %s: %w", n.Key, err)
	}

	return nil
}

// encodeTags stores nil and empty tag lists identically.
func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}

	b, err := json.Marshal(tags)

	return string(b), err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}
