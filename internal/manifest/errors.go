package manifest

import "errors"

// ErrInvalidFormat is returned when a canonical parser rejects a manifest;
// callers treat this identically to a corruption error.
var ErrInvalidFormat = errors.New("manifest: invalid format")
