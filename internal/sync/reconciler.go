package sync

import (
	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/note"
)

// Delta summarizes what a reconciliation changed in the cache.
type Delta struct {
	Created []string // keys new to the cache
	Updated []string // cached keys whose server copy is newer or never fetched
	Removed []string // cached keys the server no longer lists
	Current int      // cached keys that are up to date
}

// Empty reports whether the cache already matched the resume list.
func (d Delta) Empty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Reconcile brings the cache in line with the server's resume list. It only
// touches metadata and NeedsUpdate flags; content is fetched later for every
// note left with NeedsUpdate set.
//
// A record whose content was never fetched always needs an update. A record
// whose LocalModifyDate predates the server's ModifyDate takes the new
// metadata and needs an update; LocalModifyDate itself is left alone until
// content arrives. Cached keys absent from resumes are removed.
func Reconcile(tx cache.Tx, resumes []note.Resume) Delta {
	var d Delta

	seen := make(map[string]bool, len(resumes))

	for _, r := range resumes {
		if r.Deleted || seen[r.Key] {
			continue
		}

		seen[r.Key] = true

		cached, ok := tx.Get(r.Key)
		if !ok {
			n := &note.Note{}
			n.ApplyResume(r)
			n.NeedsUpdate = true
			tx.Put(n)
			d.Created = append(d.Created, r.Key)

			continue
		}

		switch {
		case !cached.Fetched(), cached.LocalModifyDate < r.ModifyDate:
			cached.ApplyResume(r)
			cached.NeedsUpdate = true
			d.Updated = append(d.Updated, r.Key)
		default:
			cached.NeedsUpdate = false
			d.Current++
		}
	}

	for _, n := range tx.All() {
		if !seen[n.Key] {
			tx.Remove(n.Key)
			d.Removed = append(d.Removed, n.Key)
		}
	}

	return d
}
