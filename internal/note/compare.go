package note

import (
	"cmp"
	"slices"
)

// Compare orders notes for display and for fetch priority: pinned notes
// first, then most recently modified first. Key breaks remaining ties so the
// order is deterministic.
func Compare(a, b *Note) int {
	ap, bp := a.Pinned(), b.Pinned()

	switch {
	case ap && !bp:
		return -1
	case bp && !ap:
		return 1
	}

	if c := cmp.Compare(b.ModifyDate, a.ModifyDate); c != 0 {
		return c
	}

	return cmp.Compare(a.Key, b.Key)
}

// Sort sorts notes in place by Compare.
func Sort(notes []*Note) {
	slices.SortFunc(notes, Compare)
}
