package pagecache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResource is returned before any collaborator is touched when
	// the resource id or ttl cannot be used.
	ErrInvalidResource = errors.New("pagecache: invalid resource")
	// ErrStoreUnavailable matches every *StoreError via errors.Is.
	ErrStoreUnavailable = errors.New("pagecache: store unavailable")
)

type StoreOp string

const (
	OpRead      StoreOp = "read"
	OpWrite     StoreOp = "write"
	OpIncrement StoreOp = "increment"
)

// FetchError reports that the Fetcher could not produce content.
type FetchError struct {
	ResourceID string
	Cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pagecache: fetch %s: %v", e.ResourceID, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// StoreError reports that the key-value store could not be reached or
// answered with a protocol-level error.
type StoreError struct {
	Op    StoreOp
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("pagecache: store %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }
