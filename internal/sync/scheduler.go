package sync

import (
	"github.com/tonimelisma/notesync/internal/note"
)

// fetchClass orders content downloads. Lower classes are submitted first.
type fetchClass int

const (
	classOpenDirty fetchClass = iota // open with local edits: may conflict
	classOpenClean                   // open, nothing to lose
	classClosed                      // not open
	numClasses
)

func (c fetchClass) String() string {
	switch c {
	case classOpenDirty:
		return "open-dirty"
	case classOpenClean:
		return "open-clean"
	case classClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// fetchPlan is one class of notes to download, in comparator order.
type fetchPlan struct {
	class   fetchClass
	notes   []*note.Note      // snapshots taken when the plan was made
	buffers map[string]Buffer // open buffers by note key
}

func (p fetchPlan) keys() []string {
	keys := make([]string, len(p.notes))
	for i, n := range p.notes {
		keys[i] = n.Key
	}

	return keys
}

// planFetches partitions notes needing an update into the three classes.
// A note is open when its filename names an open buffer, and dirty when that
// buffer differs from the cached content. Empty classes are omitted.
func planFetches(notes []*note.Note, buffers []Buffer) []fetchPlan {
	byFilename := make(map[string]Buffer, len(buffers))
	for _, b := range buffers {
		byFilename[b.Filename] = b
	}

	var classes [numClasses]fetchPlan
	for c := range classes {
		classes[c] = fetchPlan{class: fetchClass(c), buffers: make(map[string]Buffer)}
	}

	for _, n := range notes {
		if !n.NeedsUpdate {
			continue
		}

		c := classClosed

		b, open := byFilename[n.Filename]
		if open && n.Filename != "" {
			c = classOpenClean
			if b.Modified || b.Content != n.Content {
				c = classOpenDirty
			}

			classes[c].buffers[n.Key] = b
		}

		classes[c].notes = append(classes[c].notes, n)
	}

	plans := make([]fetchPlan, 0, numClasses)

	for _, p := range classes {
		if len(p.notes) == 0 {
			continue
		}

		note.Sort(p.notes)
		plans = append(plans, p)
	}

	return plans
}
