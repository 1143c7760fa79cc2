package sync

import (
	"context"

	"github.com/tonimelisma/notesync/internal/note"
)

// Remote is the note server. Any non-nil error is a failed call; the
// transport decides how to classify it.
type Remote interface {
	AddNote(ctx context.Context, content string) (*note.Note, error)
	GetNote(ctx context.Context, key string) (*note.Note, error)
	GetNoteList(ctx context.Context) ([]note.Resume, error)
	UpdateNote(ctx context.Context, n *note.Note) (*note.Note, error)
	TrashNote(ctx context.Context, key string) error
}

// Buffer is a note currently open in the editor.
type Buffer struct {
	Filename string
	Content  string
	// Modified reports edits the editor holds but has not written out yet.
	Modified bool
}

// Editor is the host that displays notes. The engine never opens buffers
// on its own except through WriteNote after creating or fetching a note
// the user asked for.
type Editor interface {
	// OpenBuffers lists the notes currently open.
	OpenBuffers() ([]Buffer, error)
	// WriteNote writes n's content to its buffer, renaming the buffer when
	// oldFilename differs from n.Filename. An empty oldFilename opens a new
	// buffer.
	WriteNote(n *note.Note, oldFilename string) error
	// RemoveNote closes and discards the buffer with filename.
	RemoveNote(filename string) error
}

// Conflict describes an open note with local edits whose server content
// changed.
type Conflict struct {
	Key      string
	Filename string
	Title    string
	Local    string // buffer content
	Cached   string // last content fetched from the server
	Server   string // newly fetched content
}

// Decider answers the single overwrite question asked for a batch of
// conflicting notes. true overwrites every buffer in the batch; false
// leaves all of them untouched.
type Decider interface {
	ConfirmOverwrite(ctx context.Context, conflicts []Conflict) bool
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, conflicts []Conflict) bool

// ConfirmOverwrite implements Decider.
func (f DeciderFunc) ConfirmOverwrite(ctx context.Context, conflicts []Conflict) bool {
	return f(ctx, conflicts)
}

// noEditor is used by headless hosts: nothing is ever open.
type noEditor struct{}

func (noEditor) OpenBuffers() ([]Buffer, error)   { return nil, nil }
func (noEditor) WriteNote(*note.Note, string) error { return nil }
func (noEditor) RemoveNote(string) error           { return nil }

// rejectDecider keeps local edits when nobody can be asked.
type rejectDecider struct{}

func (rejectDecider) ConfirmOverwrite(context.Context, []Conflict) bool { return false }
