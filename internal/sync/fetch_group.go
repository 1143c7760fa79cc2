package sync

import (
	"context"
	stdsync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/notesync/internal/note"
)

// DefaultFetchWorkers bounds concurrent content fetches within one batch.
const DefaultFetchWorkers = 3

// FetchGroup downloads the content of a batch of notes with bounded
// concurrency. The batch succeeds only if every fetch succeeds.
type FetchGroup struct {
	remote  Remote
	workers int
}

// NewFetchGroup returns a group running at most workers fetches at once.
// workers <= 0 uses DefaultFetchWorkers.
func NewFetchGroup(remote Remote, workers int) *FetchGroup {
	if workers <= 0 {
		workers = DefaultFetchWorkers
	}

	return &FetchGroup{remote: remote, workers: workers}
}

// Fetch runs one GetNote per key and blocks until all have finished. On any
// failure it returns a *BatchError for the first failure and no notes; the
// remaining fetches are canceled. The order of the returned notes is
// unspecified.
func (g *FetchGroup) Fetch(ctx context.Context, keys []string) ([]*note.Note, error) {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	var (
		mu      stdsync.Mutex
		fetched = make([]*note.Note, 0, len(keys))
	)

	for _, key := range keys {
		eg.Go(func() error {
			n, err := g.remote.GetNote(gctx, key)
			if err != nil {
				return &BatchError{Key: key, Total: len(keys), Err: err}
			}

			mu.Lock()
			fetched = append(fetched, n)
			mu.Unlock()

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return fetched, nil
}
