package index

import "errors"

var (
	// ErrCorrupt is returned when the index file fails its stat-digest
	// check on load and must be rebuilt.
	ErrCorrupt = errors.New("index: corrupt, must be rebuilt")

	// ErrLocked is returned when the advisory lock is held by another
	// process past the caller's timeout.
	ErrLocked = errors.New("index: locked by another process")
)
