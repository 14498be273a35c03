package hashutil

import "errors"

var (
	// ErrBadHashLength is returned when a hex hash string has the wrong length.
	ErrBadHashLength = errors.New("hashutil: hash string has wrong length")

	// ErrBadHashEncoding is returned when a hex hash string contains non-hex characters.
	ErrBadHashEncoding = errors.New("hashutil: hash string is not valid hex")
)
