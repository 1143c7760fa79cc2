package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/note"
)

func reconcile(c *cache.Cache, resumes []note.Resume) Delta {
	var d Delta

	c.Do(func(tx cache.Tx) { d = Reconcile(tx, resumes) })

	return d
}

func TestReconcile_ServerNewerKeepsLocalModifyDate(t *testing.T) {
	t.Parallel()

	c := cache.New(&cache.Snapshot{Notes: []*note.Note{
		{Key: "n1", Content: "body", ModifyDate: 100, LocalModifyDate: 100},
	}})

	d := reconcile(c, []note.Resume{{Key: "n1", ModifyDate: 200}})

	n, ok := c.Get("n1")
	require.True(t, ok)
	assert.True(t, n.NeedsUpdate)
	assert.InDelta(t, 200.0, n.ModifyDate, 1e-9)
	assert.InDelta(t, 100.0, n.LocalModifyDate, 1e-9)
	assert.Equal(t, "body", n.Content)
	assert.Equal(t, []string{"n1"}, d.Updated)
}

func TestReconcile_NewKeyNeedsUpdate(t *testing.T) {
	t.Parallel()

	c := cache.New(nil)

	d := reconcile(c, []note.Resume{{Key: "k", ModifyDate: 5, Tags: []string{"t"}, Version: 2}})

	n, ok := c.Get("k")
	require.True(t, ok)
	assert.True(t, n.NeedsUpdate)
	assert.False(t, n.Fetched())
	assert.Equal(t, []string{"t"}, n.Tags)
	assert.Equal(t, 2, n.Version)
	assert.Equal(t, []string{"k"}, d.Created)
}

func TestReconcile_NeverFetchedNeedsUpdate(t *testing.T) {
	t.Parallel()

	c := cache.New(&cache.Snapshot{Notes: []*note.Note{{Key: "k", ModifyDate: 50}}})

	reconcile(c, []note.Resume{{Key: "k", ModifyDate: 10, SystemTags: []string{note.TagPinned}}})

	n, _ := c.Get("k")
	assert.True(t, n.NeedsUpdate)
	assert.True(t, n.Pinned())
}

func TestReconcile_LocalCurrentClearsFlag(t *testing.T) {
	t.Parallel()

	c := cache.New(&cache.Snapshot{Notes: []*note.Note{
		{Key: "k", ModifyDate: 100, LocalModifyDate: 300, NeedsUpdate: true},
	}})

	d := reconcile(c, []note.Resume{{Key: "k", ModifyDate: 300}})

	n, _ := c.Get("k")
	assert.False(t, n.NeedsUpdate)
	assert.Equal(t, 1, d.Current)
}

func TestReconcile_DeletedResumeCountsAsAbsent(t *testing.T) {
	t.Parallel()

	c := cache.New(&cache.Snapshot{Notes: []*note.Note{{Key: "k", LocalModifyDate: 1}}})

	d := reconcile(c, []note.Resume{{Key: "k", ModifyDate: 2, Deleted: true}})

	assert.Zero(t, c.Len())
	assert.Equal(t, []string{"k"}, d.Removed)
}

func TestReconcile_DuplicateResumesCreateOnce(t *testing.T) {
	t.Parallel()

	c := cache.New(nil)

	d := reconcile(c, []note.Resume{{Key: "k", ModifyDate: 1}, {Key: "k", ModifyDate: 2}})

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"k"}, d.Created)
}

func TestDelta_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, Delta{Current: 4}.Empty())
	assert.False(t, Delta{Removed: []string{"x"}}.Empty())
}

// --- properties ---

var rapidKeys = []string{"a", "b", "c", "d", "e", "f", "g", "h"}

func cachedNotesGen() *rapid.Generator[[]*note.Note] {
	return rapid.Custom(func(t *rapid.T) []*note.Note {
		keys := rapid.SliceOfDistinct(rapid.SampledFrom(rapidKeys), func(k string) string { return k }).Draw(t, "cached")

		notes := make([]*note.Note, 0, len(keys))
		for _, k := range keys {
			notes = append(notes, &note.Note{
				Key:             k,
				Content:         "content " + k,
				ModifyDate:      rapid.SampledFrom([]float64{100, 200, 300}).Draw(t, "modify_"+k),
				LocalModifyDate: rapid.SampledFrom([]float64{0, 100, 200, 300}).Draw(t, "local_"+k),
				NeedsUpdate:     rapid.Bool().Draw(t, "needs_"+k),
			})
		}

		return notes
	})
}

func resumesGen() *rapid.Generator[[]note.Resume] {
	return rapid.Custom(func(t *rapid.T) []note.Resume {
		keys := rapid.SliceOfDistinct(rapid.SampledFrom(rapidKeys), func(k string) string { return k }).Draw(t, "remote")

		resumes := make([]note.Resume, 0, len(keys))
		for _, k := range keys {
			resumes = append(resumes, note.Resume{
				Key:        k,
				ModifyDate: rapid.SampledFrom([]float64{100, 200, 300}).Draw(t, "remote_modify_"+k),
			})
		}

		return resumes
	})
}

func flags(c *cache.Cache) map[string]bool {
	out := make(map[string]bool)
	for _, n := range c.Snapshot().Notes {
		out[n.Key] = n.NeedsUpdate
	}

	return out
}

func testReconcile_Properties(t *rapid.T) {
	cached := cachedNotesGen().Draw(t, "cache")
	resumes := resumesGen().Draw(t, "resumes")

	before := make(map[string]*note.Note, len(cached))
	for _, n := range cached {
		before[n.Key] = n.Clone()
	}

	c := cache.New(&cache.Snapshot{Notes: cached})
	d := reconcile(c, resumes)

	remote := make(map[string]bool, len(resumes))
	for _, r := range resumes {
		remote[r.Key] = true
	}

	// The cache holds exactly the remote keys.
	if c.Len() != len(resumes) {
		t.Fatalf("cache has %d notes, remote lists %d", c.Len(), len(resumes))
	}

	for _, r := range resumes {
		n, ok := c.Get(r.Key)
		if !ok {
			t.Fatalf("remote key %s missing from cache", r.Key)
		}

		old, existed := before[r.Key]
		if !existed {
			if !n.NeedsUpdate {
				t.Fatalf("new key %s does not need an update", r.Key)
			}

			continue
		}

		// Reconciliation never touches content or the local stamp.
		if n.Content != old.Content || n.LocalModifyDate != old.LocalModifyDate {
			t.Fatalf("reconcile changed local state of %s", r.Key)
		}

		wantUpdate := old.LocalModifyDate == 0 || old.LocalModifyDate < r.ModifyDate
		if n.NeedsUpdate != wantUpdate {
			t.Fatalf("%s: needs_update = %v, want %v", r.Key, n.NeedsUpdate, wantUpdate)
		}
	}

	created := 0
	for k := range remote {
		if _, existed := before[k]; !existed {
			created++
		}
	}

	if len(d.Created) != created {
		t.Fatalf("delta reports %d created, want %d", len(d.Created), created)
	}

	for k := range before {
		if _, ok := c.Get(k); ok != remote[k] {
			t.Fatalf("%s: cached = %v, listed = %v", k, ok, remote[k])
		}
	}

	// A second run with the same listing changes no flags.
	first := flags(c)
	reconcile(c, resumes)

	second := flags(c)
	if len(first) != len(second) {
		t.Fatalf("second run changed the cache size")
	}

	for k, v := range first {
		if second[k] != v {
			t.Fatalf("second run flipped needs_update of %s", k)
		}
	}
}

func TestReconcile_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testReconcile_Properties)
}
