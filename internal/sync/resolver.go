package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/notesync/internal/note"
)

// ConflictPolicy decides what happens when fresh server content arrives for
// an open note with local edits.
type ConflictPolicy string

// Conflict policies.
const (
	PolicyAsk       ConflictPolicy = "ask"        // ask the Decider when content changed
	PolicyUseServer ConflictPolicy = "use_server" // always overwrite the buffer
	PolicyKeepLocal ConflictPolicy = "keep_local" // never touch dirty notes
)

// ParseConflictPolicy validates s. An empty string means PolicyAsk.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case "":
		return PolicyAsk, nil
	case PolicyAsk, PolicyUseServer, PolicyKeepLocal:
		return p, nil
	default:
		return "", fmt.Errorf("sync: unknown conflict policy %q (want ask, use_server or keep_local)", s)
	}
}

// resolution is the outcome of applying the conflict policy to a batch.
type resolution struct {
	merge     bool                  // store fetched content in the cache
	overwrite func(key string) bool // whether key's open buffer takes the fetched content
}

func overwriteAll(string) bool  { return true }
func overwriteNone(string) bool { return false }

// resolve applies the conflict policy to a fetched batch of plan's class.
// Only the open-dirty class can conflict. Dirty buffers are only ever
// overwritten with content that actually changed on the server, unless the
// policy says to always take the server's copy.
func (e *Engine) resolve(ctx context.Context, plan fetchPlan, fetched []*note.Note) resolution {
	if plan.class != classOpenDirty {
		return resolution{merge: true, overwrite: overwriteAll}
	}

	switch e.policy {
	case PolicyUseServer:
		return resolution{merge: true, overwrite: overwriteAll}
	case PolicyKeepLocal:
		e.logger.Info("keeping local edits",
			slog.Int("notes", len(fetched)),
			slog.String("policy", string(e.policy)),
		)

		return resolution{overwrite: overwriteNone}
	}

	conflicts := e.conflicts(plan, fetched)
	if len(conflicts) == 0 {
		return resolution{merge: true, overwrite: overwriteNone}
	}

	accepted := e.decider.ConfirmOverwrite(ctx, conflicts)

	e.logger.Info("conflict decision",
		slog.Int("conflicts", len(conflicts)),
		slog.Bool("overwrite", accepted),
	)

	if !accepted {
		// The cache still takes the server copy; the buffers keep the local
		// edits, which go back to the server on the next save.
		return resolution{merge: true, overwrite: overwriteNone}
	}

	changed := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		changed[c.Key] = true
	}

	return resolution{merge: true, overwrite: func(key string) bool { return changed[key] }}
}

// conflicts lists fetched notes whose content differs from what the cache
// last saw from the server.
func (e *Engine) conflicts(plan fetchPlan, fetched []*note.Note) []Conflict {
	var out []Conflict

	for _, f := range fetched {
		cached, ok := e.cache.Get(f.Key)
		if !ok || cached.Content == f.Content {
			continue
		}

		buf := plan.buffers[f.Key]

		out = append(out, Conflict{
			Key:      f.Key,
			Filename: cached.Filename,
			Title:    f.Title(),
			Local:    buf.Content,
			Cached:   cached.Content,
			Server:   f.Content,
		})
	}

	return out
}
