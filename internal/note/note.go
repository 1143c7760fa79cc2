// Package note defines the note record shared by the cache, the sync engine,
// and the remote transport. A Note carries both the server-side resume fields
// and the local bookkeeping the engine needs to reconcile the two replicas.
package note

import (
	"math"
	"slices"
	"strings"
	"time"
)

// TagPinned is the system tag that floats a note to the top of every listing.
const TagPinned = "pinned"

// untitled is the display name for notes without content.
const untitled = "untitled"

// Note is a single note as held in the local cache.
//
// LocalModifyDate is zero until content has been downloaded at least once;
// the reconciler treats a zero value as "never fetched".
type Note struct {
	Key             string   `json:"key"`
	Content         string   `json:"content,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	SystemTags      []string `json:"systemtags,omitempty"`
	ModifyDate      float64  `json:"modifydate"`
	CreateDate      float64  `json:"createdate,omitempty"`
	Version         int      `json:"version,omitempty"`
	Deleted         bool     `json:"deleted,omitempty"`
	LocalModifyDate float64  `json:"local_modifydate,omitempty"`
	NeedsUpdate     bool     `json:"needs_update,omitempty"`
	Filename        string   `json:"filename,omitempty"`
}

// Resume is the content-less metadata the server reports in a note listing.
type Resume struct {
	Key        string
	ModifyDate float64
	CreateDate float64
	Version    int
	Tags       []string
	SystemTags []string
	Deleted    bool
}

// Pinned reports whether the note carries the pinned system tag.
func (n *Note) Pinned() bool {
	return slices.Contains(n.SystemTags, TagPinned)
}

// Fetched reports whether content has ever been downloaded for this note.
func (n *Note) Fetched() bool {
	return n.LocalModifyDate > 0
}

// Resume returns the server-side metadata of the note.
func (n *Note) Resume() Resume {
	return Resume{
		Key:        n.Key,
		ModifyDate: n.ModifyDate,
		CreateDate: n.CreateDate,
		Version:    n.Version,
		Tags:       slices.Clone(n.Tags),
		SystemTags: slices.Clone(n.SystemTags),
		Deleted:    n.Deleted,
	}
}

// ApplyResume overwrites the server-side metadata fields with r. Content and
// local bookkeeping are left untouched.
func (n *Note) ApplyResume(r Resume) {
	n.Key = r.Key
	n.ModifyDate = r.ModifyDate
	n.CreateDate = r.CreateDate
	n.Version = r.Version
	n.Tags = slices.Clone(r.Tags)
	n.SystemTags = slices.Clone(r.SystemTags)
	n.Deleted = r.Deleted
}

// Clone returns a deep copy of n.
func (n *Note) Clone() *Note {
	c := *n
	c.Tags = slices.Clone(n.Tags)
	c.SystemTags = slices.Clone(n.SystemTags)

	return &c
}

// Title returns the first line of the content, or "untitled".
func (n *Note) Title() string {
	if n.Content == "" {
		return untitled
	}

	title, _, _ := strings.Cut(n.Content, "\n")
	if title == "" {
		return untitled
	}

	return title
}

// Timestamp converts t to the float seconds used by the server.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Time converts float seconds back to a time.Time.
func Time(ts float64) time.Time {
	sec, frac := math.Modf(ts)

	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
