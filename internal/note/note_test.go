package note

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_PinnedBeforeNewer(t *testing.T) {
	t.Parallel()

	p := &Note{Key: "p", ModifyDate: 50, SystemTags: []string{TagPinned}}
	q := &Note{Key: "q", ModifyDate: 900}

	notes := []*Note{q, p}
	Sort(notes)

	assert.Equal(t, []*Note{p, q}, notes)
}

func TestCompare_DescendingModifyDate(t *testing.T) {
	t.Parallel()

	a := &Note{Key: "a", ModifyDate: 10}
	b := &Note{Key: "b", ModifyDate: 30}
	c := &Note{Key: "c", ModifyDate: 20}

	notes := []*Note{a, b, c}
	Sort(notes)

	assert.Equal(t, []string{"b", "c", "a"}, keys(notes))
}

func TestCompare_BothPinnedUsesModifyDate(t *testing.T) {
	t.Parallel()

	old := &Note{Key: "old", ModifyDate: 1, SystemTags: []string{TagPinned}}
	recent := &Note{Key: "recent", ModifyDate: 2, SystemTags: []string{"markdown", TagPinned}}

	assert.Positive(t, Compare(old, recent))
	assert.Negative(t, Compare(recent, old))
}

func TestCompare_TieBreaksOnKey(t *testing.T) {
	t.Parallel()

	a := &Note{Key: "a", ModifyDate: 5}
	b := &Note{Key: "b", ModifyDate: 5}

	assert.Negative(t, Compare(a, b))
	assert.Zero(t, Compare(a, a))
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "untitled"},
		{"single line", "groceries", "groceries"},
		{"multi line", "todo\n- milk\n- eggs", "todo"},
		{"blank first line", "\nbody", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := &Note{Content: tt.content}
			assert.Equal(t, tt.want, n.Title())
		})
	}
}

func TestApplyResume_KeepsLocalFields(t *testing.T) {
	t.Parallel()

	n := &Note{Key: "n1", Content: "body", ModifyDate: 100, LocalModifyDate: 100, Filename: "body (n1)"}
	n.ApplyResume(Resume{Key: "n1", ModifyDate: 200, SystemTags: []string{TagPinned}})

	assert.InDelta(t, 200.0, n.ModifyDate, 0)
	assert.InDelta(t, 100.0, n.LocalModifyDate, 0)
	assert.Equal(t, "body", n.Content)
	assert.Equal(t, "body (n1)", n.Filename)
	assert.True(t, n.Pinned())
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	n := &Note{Key: "k", Tags: []string{"a"}}
	c := n.Clone()
	c.Tags[0] = "b"

	assert.Equal(t, "a", n.Tags[0])
}

func TestTimestamp_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 250_000_000)
	ts := Timestamp(now)

	assert.InDelta(t, 1700000000.25, ts, 1e-6)
	assert.WithinDuration(t, now, Time(ts), time.Microsecond)
}

func TestNamer_Filename(t *testing.T) {
	t.Parallel()

	namer, err := NewNamer([]ExtensionRule{
		{TitleRegex: `^#`, Extension: "md"},
		{TitleRegex: `todo`, Extension: ".txt"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "Shopping list\nmilk", "Shopping list (k1)"},
		{"markdown rule", "# Heading", " Heading (k1).md"},
		{"second rule", "my todo/list", "my todolist (k1).txt"},
		{"accents folded", "café ☕", "cafe  (k1)"},
		{"empty", "", "untitled (k1)"},
		{"leading dot", ".plan\nbody", "plan (k1)"},
		{"only dots", "...", "untitled (k1)"},
		{"dots after trimmed symbols", "~..todo", "todo (k1).txt"},
		{"nothing filename safe", "☕", "untitled (k1)"},
		{"inner dots kept", "v1.2 notes", "v1.2 notes (k1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, namer.Filename(&Note{Key: "k1", Content: tt.content}))
		})
	}
}

func TestNewNamer_InvalidRegex(t *testing.T) {
	t.Parallel()

	_, err := NewNamer([]ExtensionRule{{TitleRegex: "(", Extension: "md"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title_extension_map[0]")
}

func TestKeyFromFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc123", KeyFromFilename("Shopping (list) (abc123).md"))
	assert.Equal(t, "k", KeyFromFilename("x (k)"))
	assert.Empty(t, KeyFromFilename("no key here.txt"))
}

func keys(notes []*Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Key
	}

	return out
}
