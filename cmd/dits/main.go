// cmd/dits/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/internal/objectstore"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "dits",
	Short:   "dits - content-addressed version control for large binary files",
	Long:    "dits versions large and binary files by content-defined chunking and BLAKE3-addressed storage instead of line diffs.",
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command's returned error onto the exit-code
// convention: 0 success, 1 generic failure, 2 usage error, 128 conflict,
// 129 corrupt object.
func exitCodeFor(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return 2
	}
	var conflict *conflictError
	if errors.As(err, &conflict) {
		return 128
	}
	var corrupt *objectstore.CorruptError
	if errors.As(err, &corrupt) {
		return 129
	}
	return 1
}

// usageError marks a command-line misuse (bad flags, bad args) distinct
// from a failure that happened while doing real work.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// conflictError marks a merge that left unresolved conflicts staged.
type conflictError struct{ paths []string }

func (e *conflictError) Error() string {
	return fmt.Sprintf("conflicts in %d path(s), resolve and commit", len(e.paths))
}

// asConflictError wraps a merge result's conflict paths, or returns nil
// if there were none.
func asConflictError(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return &conflictError{paths: paths}
}
