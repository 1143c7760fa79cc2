package sync

import (
	"context"
	"time"

	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/queue"
)

// Status texts shown while each kind of task runs.
const (
	textCreating     = "Creating note"
	textListing      = "Downloading notes"
	textFetchingOne  = "Downloading note"
	textFetchingMany = "Downloading contents"
	textDeleting     = "Deleting note"
	textUpdating     = "Updating note"
	textDone         = "Done"
)

// newTask wraps fn as a queue operation with label-prefixed status texts.
// An empty finished text clears the status line when the task ends.
func newTask[T any](label, progress, finished string, fn func(ctx context.Context) (T, error)) *queue.Op[T] {
	finishedText := ""
	if finished != "" {
		finishedText = label + ": " + finished
	}

	return queue.NewOp(progress, fn).
		WithStatus(label+": "+progress, finishedText).
		WithFailedText(label + ": " + progress + " failed")
}

// createTask adds a note with content. Servers that omit content from the
// response get it filled back in.
func createTask(remote Remote, label, content string) *queue.Op[*note.Note] {
	return newTask(label, textCreating, "", func(ctx context.Context) (*note.Note, error) {
		n, err := remote.AddNote(ctx, content)
		if err != nil {
			return nil, err
		}

		if n.Content == "" {
			n.Content = content
		}

		return n, nil
	})
}

// fetchOneTask downloads a single note.
func fetchOneTask(remote Remote, label, key string) *queue.Op[*note.Note] {
	return newTask(label, textFetchingOne, textDone, func(ctx context.Context) (*note.Note, error) {
		return remote.GetNote(ctx, key)
	})
}

// fetchManyTask downloads a batch through a FetchGroup.
func fetchManyTask(group *FetchGroup, label string, keys []string) *queue.Op[[]*note.Note] {
	return newTask(label, textFetchingMany, textDone, func(ctx context.Context) ([]*note.Note, error) {
		return group.Fetch(ctx, keys)
	})
}

// listTask downloads the note index. Tombstoned entries are dropped so that
// trashed notes disappear from the cache like deleted ones.
func listTask(remote Remote, label string) *queue.Op[[]note.Resume] {
	return newTask(label, textListing, textDone, func(ctx context.Context) ([]note.Resume, error) {
		resumes, err := remote.GetNoteList(ctx)
		if err != nil {
			return nil, err
		}

		live := make([]note.Resume, 0, len(resumes))
		for _, r := range resumes {
			if !r.Deleted {
				live = append(live, r)
			}
		}

		return live, nil
	})
}

// deleteTask moves a note to the server's trash.
func deleteTask(remote Remote, label, key string) *queue.Op[struct{}] {
	return newTask(label, textDeleting, "", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, remote.TrashNote(ctx, key)
	})
}

// updateTask pushes n, stamped with the current time as its modification
// date. n must not be shared with the cache.
func updateTask(remote Remote, label string, n *note.Note, now func() time.Time) *queue.Op[*note.Note] {
	return newTask(label, textUpdating, textDone, func(ctx context.Context) (*note.Note, error) {
		n.ModifyDate = note.Timestamp(now())
		return remote.UpdateNote(ctx, n)
	})
}
