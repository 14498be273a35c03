package objectstore

import (
	"fmt"

	"github.com/dits-vcs/dits/internal/hashutil"
)

// NotFoundError is returned when an object is expected but absent.
type NotFoundError struct {
	Kind Kind
	Hash hashutil.Hash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("objectstore: %s object %s not found", e.Kind.dirName(), e.Hash)
}

// CorruptError is returned when stored bytes do not match their hash.
type CorruptError struct {
	Hash   hashutil.Hash
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("objectstore: object %s is corrupt: %s", e.Hash, e.Reason)
}
