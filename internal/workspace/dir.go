// Package workspace keeps open notes as plain files in a directory. A file
// in the workspace is an open buffer; saving the file is a local edit that
// the Watcher hands to the sync engine.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	stdsync "sync"

	"github.com/natefinch/atomic"

	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/sync"
)

const (
	dirPerms  = 0o700
	filePerms = 0o600
)

// Dir is an Editor backed by a workspace directory. Files are never
// modified in memory, so Buffer.Modified is always false; a saved file
// whose content differs from the cache is what makes a note dirty.
type Dir struct {
	root   string
	logger *slog.Logger

	mu      stdsync.Mutex
	writing map[string]int // target filename -> in-flight writes
}

// Open creates the workspace directory if needed.
func Open(root string, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(root, dirPerms); err != nil {
		return nil, fmt.Errorf("workspace: creating %s: %w", root, err)
	}

	return &Dir{root: root, logger: logger, writing: make(map[string]int)}, nil
}

// Root returns the workspace directory.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the absolute path of a buffer file.
func (d *Dir) Path(filename string) string {
	return filepath.Join(d.root, filename)
}

// OpenBuffers lists every note file in the workspace, sorted by filename.
func (d *Dir) OpenBuffers() ([]sync.Buffer, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("workspace: listing %s: %w", d.root, err)
	}

	var buffers []sync.Buffer

	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || isIgnored(name) || d.isPartial(name) {
			continue
		}

		data, err := os.ReadFile(d.Path(name))
		if err != nil {
			// Removed between readdir and read.
			d.logger.Debug("workspace: skipping unreadable file",
				slog.String("name", name), slog.String("error", err.Error()))

			continue
		}

		buffers = append(buffers, sync.Buffer{Filename: name, Content: string(data)})
	}

	sort.Slice(buffers, func(i, j int) bool { return buffers[i].Filename < buffers[j].Filename })

	return buffers, nil
}

// WriteNote writes n.Content to n.Filename atomically and removes
// oldFilename when the note was renamed.
func (d *Dir) WriteNote(n *note.Note, oldFilename string) error {
	if n.Filename == "" {
		return fmt.Errorf("workspace: note %s has no filename", n.Key)
	}

	if err := checkName(n.Filename); err != nil {
		return err
	}

	d.beginWrite(n.Filename)
	defer d.endWrite(n.Filename)

	target := d.Path(n.Filename)
	if err := atomic.WriteFile(target, strings.NewReader(n.Content)); err != nil {
		return fmt.Errorf("workspace: writing %s: %w", n.Filename, err)
	}

	if err := os.Chmod(target, filePerms); err != nil {
		return fmt.Errorf("workspace: setting permissions on %s: %w", n.Filename, err)
	}

	if oldFilename != "" && oldFilename != n.Filename {
		if err := d.RemoveNote(oldFilename); err != nil {
			return err
		}

		d.logger.Debug("workspace: renamed buffer",
			slog.String("from", oldFilename), slog.String("to", n.Filename))
	}

	return nil
}

// RemoveNote deletes a buffer file. A missing file is not an error.
func (d *Dir) RemoveNote(filename string) error {
	if err := checkName(filename); err != nil {
		return err
	}

	if err := os.Remove(d.Path(filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("workspace: removing %s: %w", filename, err)
	}

	return nil
}

func (d *Dir) beginWrite(name string) {
	d.mu.Lock()
	d.writing[name]++
	d.mu.Unlock()
}

func (d *Dir) endWrite(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writing[name]--; d.writing[name] <= 0 {
		delete(d.writing, name)
	}
}

// isPartial reports whether name is the temporary file of a write in
// progress. atomic.WriteFile creates it next to the target with a random
// suffix appended to the target's name.
func (d *Dir) isPartial(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for target := range d.writing {
		if name != target && strings.HasPrefix(name, target) {
			return true
		}
	}

	return false
}

// checkName rejects names that would escape the workspace.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("workspace: invalid filename %q", name)
	}

	return nil
}

// isIgnored matches dotfiles and editor temporaries.
func isIgnored(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || strings.HasSuffix(name, "~") {
		return true
	}

	lower := strings.ToLower(name)
	for _, ext := range ignoredSuffixes {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

var ignoredSuffixes = []string{".tmp", ".swp", ".swx", ".partial"}
