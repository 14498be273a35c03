//go:build !windows

package index

import (
	"os"
	"syscall"
)

// StatInode extracts the inode number backing info, the same
// syscall.Stat_t field go-git's fillSystemInfo (worktree_darwin.go,
// worktree_bsd.go) reads into index.Entry.Inode on every unix platform.
func StatInode(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
