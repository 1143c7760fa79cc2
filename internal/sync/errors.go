package sync

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine.
var (
	// ErrBatchFailed marks a Fetch-Many batch in which at least one fetch
	// failed. Nothing from such a batch is merged.
	ErrBatchFailed = errors.New("sync: batch fetch failed")
	// ErrUnknownNote is returned for operations on keys the cache does not hold.
	ErrUnknownNote = errors.New("sync: unknown note")
	// ErrNotFetched is returned when a note's content was never downloaded.
	ErrNotFetched = errors.New("sync: note content not downloaded")
)

// BatchError reports the first failed fetch of a batch.
type BatchError struct {
	Key   string // key whose fetch failed first
	Total int    // size of the batch
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("sync: fetching %s (batch of %d): %v", e.Key, e.Total, e.Err)
}

func (e *BatchError) Unwrap() []error {
	return []error{ErrBatchFailed, e.Err}
}
