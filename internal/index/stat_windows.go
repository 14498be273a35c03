//go:build windows

package index

import "os"

// StatInode has no portable equivalent on Windows (file IDs require an
// open handle and a separate syscall, which os.FileInfo doesn't expose);
// returning 0 makes the inode comparison in statMatches a no-op there,
// falling back to the (size, mtime) pair alone, same as go-git's own
// Windows worktree status path.
func StatInode(info os.FileInfo) uint64 {
	return 0
}
