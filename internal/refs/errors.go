package refs

import "errors"

var (
	// ErrNotFound is returned when a ref does not exist.
	ErrNotFound = errors.New("refs: not found")

	// ErrCompareFailed is returned when an Update or Delete's expected old
	// value does not match the ref's current value.
	ErrCompareFailed = errors.New("refs: compare-and-swap failed")
)
