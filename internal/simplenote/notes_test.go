package simplenote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/notesync/internal/note"
)

func TestGetNote_DecodesStringDates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"key":"abc","content":"Hello\nworld","deleted":0,
			"modifydate":"1700000100.250000","createdate":1700000000,
			"version":4,"syncnum":9,"tags":["t"],"systemtags":["pinned"]}`))
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv.URL).GetNote(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "abc", n.Key)
	assert.Equal(t, "Hello\nworld", n.Content)
	assert.InDelta(t, 1700000100.25, n.ModifyDate, 1e-6)
	assert.InDelta(t, 1700000000.0, n.CreateDate, 1e-6)
	assert.Equal(t, 4, n.Version)
	assert.Equal(t, []string{"t"}, n.Tags)
	assert.True(t, n.Pinned())
	assert.False(t, n.Deleted)
}

func TestGetNote_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetNote(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get note")
}

func TestGetNote_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetNote(context.Background(), "k")
	require.ErrorIs(t, err, ErrUnexpected)
}

func TestGetNoteList_FollowsMarks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("length"))

		switch r.URL.Query().Get("mark") {
		case "":
			_, _ = w.Write([]byte(`{"count":2,"mark":"page2","data":[
				{"key":"a","modifydate":"10.5","deleted":0,"tags":[],"systemtags":[]},
				{"key":"b","modifydate":"20","deleted":1,"tags":[],"systemtags":[]}]}`))
		case "page2":
			_, _ = w.Write([]byte(`{"count":1,"data":[{"key":"c","modifydate":30,"version":2}]}`))
		default:
			t.Errorf("unexpected mark %q", r.URL.Query().Get("mark"))
		}
	}))
	defer srv.Close()

	resumes, err := newTestClient(t, srv.URL).GetNoteList(context.Background())
	require.NoError(t, err)
	require.Len(t, resumes, 3)

	assert.Equal(t, "a", resumes[0].Key)
	assert.InDelta(t, 10.5, resumes[0].ModifyDate, 1e-9)
	assert.True(t, resumes[1].Deleted)
	assert.Equal(t, 2, resumes[2].Version)
}

func TestAddNote_PostsContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/data", r.URL.Path)

		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "new note", got["content"])
		assert.Equal(t, "1700000000.000000", got["modifydate"])
		assert.InDelta(t, 0, got["deleted"], 0)

		_, _ = w.Write([]byte(`{"key":"fresh","modifydate":"1700000000","version":1}`))
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv.URL).AddNote(context.Background(), "new note")
	require.NoError(t, err)
	assert.Equal(t, "fresh", n.Key)
	assert.Empty(t, n.Content, "server omitted content")
}

func TestUpdateNote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/k1", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"content":"edited"`)
		assert.Contains(t, string(body), `"tags":[]`)

		_, _ = w.Write([]byte(`{"key":"k1","modifydate":"55","version":6,"content":"edited + merged"}`))
	}))
	defer srv.Close()

	n, err := newTestClient(t, srv.URL).UpdateNote(context.Background(), &note.Note{Key: "k1", Content: "edited", Version: 5})
	require.NoError(t, err)
	assert.Equal(t, 6, n.Version)
	assert.Equal(t, "edited + merged", n.Content)
}

func TestUpdateNote_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := newTestClient(t, "http://unused").UpdateNote(context.Background(), &note.Note{})
	require.Error(t, err)
}

func TestTrashNote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/k1", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"deleted":1,"modifydate":"1700000000.000000"}`, string(body))

		_, _ = w.Write([]byte(`{"key":"k1","deleted":1}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv.URL).TrashNote(context.Background(), "k1"))
}

func TestTimestamp_Invalid(t *testing.T) {
	t.Parallel()

	var ts timestamp
	require.Error(t, json.Unmarshal([]byte(`"soon"`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.Zero(t, float64(ts))
}

func TestFlag_Invalid(t *testing.T) {
	t.Parallel()

	var f flag
	require.Error(t, json.Unmarshal([]byte(`"yes"`), &f))
	require.NoError(t, json.Unmarshal([]byte(`true`), &f))
	assert.True(t, bool(f))
}
