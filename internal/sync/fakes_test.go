package sync

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/notesync/internal/cache"
	"github.com/tonimelisma/notesync/internal/note"
	"github.com/tonimelisma/notesync/internal/queue"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testLogWriter struct {
	t *testing.T
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// fakeRemote is an in-memory note server.
type fakeRemote struct {
	mu      stdsync.Mutex
	notes   map[string]*note.Note
	order   []string // listing order
	nextKey int

	listErr   error
	getErrs   map[string]error
	updateErr error
	addErr    error
	trashErr  error

	gets    []string
	updates []*note.Note
	trashed []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	getDelay    time.Duration
}

func newFakeRemote(notes ...*note.Note) *fakeRemote {
	r := &fakeRemote{notes: make(map[string]*note.Note), getErrs: make(map[string]error)}
	for _, n := range notes {
		r.put(n)
	}

	return r
}

func (r *fakeRemote) put(n *note.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[n.Key]; !ok {
		r.order = append(r.order, n.Key)
	}

	r.notes[n.Key] = n.Clone()
}

func (r *fakeRemote) AddNote(_ context.Context, content string) (*note.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.addErr != nil {
		return nil, r.addErr
	}

	r.nextKey++
	n := &note.Note{Key: fmt.Sprintf("new%d", r.nextKey), ModifyDate: 500, CreateDate: 500, Version: 1}
	r.notes[n.Key] = n.Clone()
	r.order = append(r.order, n.Key)

	// Like the real server, the response carries no content.
	return n, nil
}

func (r *fakeRemote) GetNote(ctx context.Context, key string) (*note.Note, error) {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	for {
		prev := r.maxInFlight.Load()
		if cur <= prev || r.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	if r.getDelay > 0 {
		select {
		case <-time.After(r.getDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.gets = append(r.gets, key)

	if err := r.getErrs[key]; err != nil {
		return nil, err
	}

	n, ok := r.notes[key]
	if !ok {
		return nil, fmt.Errorf("fake: no note %s", key)
	}

	return n.Clone(), nil
}

func (r *fakeRemote) GetNoteList(context.Context) ([]note.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listErr != nil {
		return nil, r.listErr
	}

	out := make([]note.Resume, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.notes[key].Resume())
	}

	return out, nil
}

func (r *fakeRemote) UpdateNote(_ context.Context, n *note.Note) (*note.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates = append(r.updates, n.Clone())

	if r.updateErr != nil {
		return nil, r.updateErr
	}

	stored := n.Clone()
	stored.Version++
	r.notes[n.Key] = stored

	// The response carries metadata only.
	res := stored.Clone()
	res.Content = ""

	return res, nil
}

func (r *fakeRemote) TrashNote(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trashErr != nil {
		return r.trashErr
	}

	r.trashed = append(r.trashed, key)

	if n, ok := r.notes[key]; ok {
		n.Deleted = true
	}

	return nil
}

func (r *fakeRemote) getKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.gets)
}

// fakeEditor keeps buffers in memory, keyed by filename.
type fakeEditor struct {
	mu      stdsync.Mutex
	buffers map[string]Buffer
	writes  []string
	removed []string
	listErr error
}

func newFakeEditor(buffers ...Buffer) *fakeEditor {
	e := &fakeEditor{buffers: make(map[string]Buffer)}
	for _, b := range buffers {
		e.buffers[b.Filename] = b
	}

	return e
}

func (e *fakeEditor) OpenBuffers() ([]Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listErr != nil {
		return nil, e.listErr
	}

	return slices.Collect(maps.Values(e.buffers)), nil
}

func (e *fakeEditor) WriteNote(n *note.Note, oldFilename string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if oldFilename != "" && oldFilename != n.Filename {
		delete(e.buffers, oldFilename)
	}

	e.buffers[n.Filename] = Buffer{Filename: n.Filename, Content: n.Content}
	e.writes = append(e.writes, n.Filename)

	return nil
}

func (e *fakeEditor) RemoveNote(filename string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.buffers, filename)
	e.removed = append(e.removed, filename)

	return nil
}

func (e *fakeEditor) buffer(filename string) (Buffer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.buffers[filename]

	return b, ok
}

// recordingDecider answers with a fixed decision and records every batch.
type recordingDecider struct {
	mu      stdsync.Mutex
	answer  bool
	batches [][]Conflict
}

func (d *recordingDecider) ConfirmOverwrite(_ context.Context, conflicts []Conflict) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.batches = append(d.batches, conflicts)

	return d.answer
}

func (d *recordingDecider) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.batches)
}

// memStore records saved snapshots.
type memStore struct {
	mu    stdsync.Mutex
	saves []*cache.Snapshot
}

func (s *memStore) Load(context.Context) (*cache.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.saves) == 0 {
		return &cache.Snapshot{}, nil
	}

	return s.saves[len(s.saves)-1], nil
}

func (s *memStore) Save(_ context.Context, snap *cache.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves = append(s.saves, snap)

	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) last() *cache.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.saves) == 0 {
		return nil
	}

	return s.saves[len(s.saves)-1]
}

// recordingSink collects status texts.
type recordingSink struct {
	mu    stdsync.Mutex
	texts []string
}

func (s *recordingSink) SetStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts = append(s.texts, text)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.texts)
}

// fixedNow is the clock used by test engines.
var fixedNow = time.Unix(1700001000, 0)

type engineFixture struct {
	engine  *Engine
	remote  *fakeRemote
	editor  *fakeEditor
	decider *recordingDecider
	store   *memStore
	sink    *recordingSink
	cache   *cache.Cache
}

type fixtureOption func(*EngineConfig)

func withPolicy(p ConflictPolicy) fixtureOption {
	return func(cfg *EngineConfig) { cfg.OnConflict = p }
}

func withWorkers(n int) fixtureOption {
	return func(cfg *EngineConfig) { cfg.FetchWorkers = n }
}

func withScheduler(s queue.Scheduler) fixtureOption {
	return func(cfg *EngineConfig) { cfg.Scheduler = s }
}

func newFixture(t *testing.T, remote *fakeRemote, editor *fakeEditor, cached []*note.Note, opts ...fixtureOption) *engineFixture {
	t.Helper()

	f := &engineFixture{
		remote:  remote,
		editor:  editor,
		decider: &recordingDecider{},
		store:   &memStore{},
		sink:    &recordingSink{},
		cache:   cache.New(&cache.Snapshot{Notes: cached}),
	}

	cfg := &EngineConfig{
		Remote:       remote,
		Cache:        f.cache,
		Store:        f.store,
		Editor:       editor,
		Decider:      f.decider,
		Sink:         f.sink,
		PollInterval: time.Millisecond,
		ClearDelay:   time.Millisecond,
		Logger:       testLogger(t),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	e, err := NewEngine(context.Background(), cfg)
	require.NoError(t, err)

	e.nowFunc = func() time.Time { return fixedNow }
	f.engine = e

	return f
}

func (f *engineFixture) wait(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, f.engine.WaitIdle(ctx))
}

func (f *engineFixture) cached(t *testing.T, key string) *note.Note {
	t.Helper()

	n, ok := f.cache.Get(key)
	require.True(t, ok, "note %s not cached", key)

	return n
}

// fetched returns a cached record whose content was downloaded at ts.
func fetched(key, content string, ts float64, namer *note.Namer) *note.Note {
	n := &note.Note{Key: key, Content: content, ModifyDate: ts, LocalModifyDate: ts, Version: 1}
	n.Filename = namer.Filename(n)

	return n
}

func plainNamer(t *testing.T) *note.Namer {
	t.Helper()

	nm, err := note.NewNamer(nil)
	require.NoError(t, err)

	return nm
}
