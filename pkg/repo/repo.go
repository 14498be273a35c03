// Package repo wires the lower-level packages (objectstore, refs, index,
// config, ingest) into a single Repository, the library's top-level call
// surface — the same "thin façade over well-tested internals" role
// go-delta's pkg/compress.Options/Compress pairing plays for its own
// collaborators.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dits-vcs/dits/internal/config"
	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/internal/refs"
)

// DitsDir is the name of a repository's metadata directory, analogous to
// .git.
const DitsDir = ".dits"

const indexLockTimeout = 10 * time.Second

// DefaultBranch is the branch HEAD points at in a freshly initialized
// repository.
const DefaultBranch = "main"

// Repository is a handle onto one dits working copy.
type Repository struct {
	Root   string // working tree root
	GitDir string // Root/.dits

	Store  *objectstore.Store
	Refs   *refs.Store
	Config *config.File
}

func gitDirPath(root string) string { return filepath.Join(root, DitsDir) }
func indexPath(gitDir string) string { return filepath.Join(gitDir, "index") }
func indexLockPath(gitDir string) string { return filepath.Join(gitDir, "index.lock") }
func configPath(gitDir string) string { return filepath.Join(gitDir, "config") }
func objectsPath(gitDir string) string { return filepath.Join(gitDir, "objects") }

// Init creates a new repository at root. It fails if root/.dits already
// exists.
func Init(root string) (*Repository, error) {
	gitDir := gitDirPath(root)
	if _, err := os.Stat(gitDir); err == nil {
		return nil, fmt.Errorf("repo: %s already exists", gitDir)
	}
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		return nil, fmt.Errorf("repo: create %s: %w", gitDir, err)
	}

	cfg := config.Default()
	if err := config.Save(cfg, configPath(gitDir)); err != nil {
		return nil, fmt.Errorf("repo: write config: %w", err)
	}

	store, err := objectstore.Open(objectsPath(gitDir), cfg.Core.Compression)
	if err != nil {
		return nil, fmt.Errorf("repo: open object store: %w", err)
	}

	refStore := refs.Open(gitDir)
	if err := refStore.SetHeadSymbolic(refs.Name(refs.HeadsPrefix + DefaultBranch)); err != nil {
		return nil, fmt.Errorf("repo: set initial HEAD: %w", err)
	}

	return &Repository{Root: root, GitDir: gitDir, Store: store, Refs: refStore, Config: cfg}, nil
}

// Open loads an existing repository rooted at root.
func Open(root string) (*Repository, error) {
	gitDir := gitDirPath(root)
	if _, err := os.Stat(gitDir); err != nil {
		return nil, fmt.Errorf("repo: %s is not a dits repository: %w", root, err)
	}

	cfg, err := config.Load(configPath(gitDir))
	if err != nil {
		return nil, fmt.Errorf("repo: load config: %w", err)
	}
	store, err := objectstore.Open(objectsPath(gitDir), cfg.Core.Compression)
	if err != nil {
		return nil, fmt.Errorf("repo: open object store: %w", err)
	}
	refStore := refs.Open(gitDir)

	return &Repository{Root: root, GitDir: gitDir, Store: store, Refs: refStore, Config: cfg}, nil
}

// Close releases the repository's held resources (currently just the
// object store's compressor).
func (r *Repository) Close() error {
	return r.Store.Close()
}

// withIndex loads the index under the advisory lock, runs fn, and saves
// the result — all-or-nothing the way index.Save's write-via-rename makes
// a single call, but also serializing concurrent callers against each
// other via index.AcquireLock.
func (r *Repository) withIndex(fn func(*index.Index) error) error {
	lock, err := index.AcquireLock(indexLockPath(r.GitDir), indexLockTimeout)
	if err != nil {
		return fmt.Errorf("repo: acquire index lock: %w", err)
	}
	defer lock.Unlock()

	idx, err := index.Load(indexPath(r.GitDir))
	if err != nil {
		return fmt.Errorf("repo: load index: %w", err)
	}
	if err := fn(idx); err != nil {
		return err
	}
	if err := index.Save(idx, indexPath(r.GitDir)); err != nil {
		return fmt.Errorf("repo: save index: %w", err)
	}
	return nil
}

// readIndex loads a read-only snapshot of the index without taking the
// write lock, for status/diff/log callers that don't mutate it.
func (r *Repository) readIndex() (*index.Index, error) {
	idx, err := index.Load(indexPath(r.GitDir))
	if err != nil {
		return nil, fmt.Errorf("repo: load index: %w", err)
	}
	return idx, nil
}

// headCommit resolves HEAD to a commit hash, or the zero hash if HEAD
// points at a branch with no commits yet.
func (r *Repository) headCommit() (hashutil.Hash, bool, error) {
	h, err := r.Refs.Resolve(refs.Head)
	if err != nil {
		return hashutil.Hash{}, false, nil
	}
	return h, true, nil
}

// loadTree fetches and decodes a tree object.
func (r *Repository) loadTree(h hashutil.Hash) (*manifest.Tree, error) {
	raw, err := r.Store.Get(objectstore.KindTree, h)
	if err != nil {
		return nil, err
	}
	return manifest.DecodeTree(raw)
}

// loadCommit fetches and decodes a commit object.
func (r *Repository) loadCommit(h hashutil.Hash) (*manifest.Commit, error) {
	raw, err := r.Store.Get(objectstore.KindCommit, h)
	if err != nil {
		return nil, err
	}
	return manifest.DecodeCommit(raw)
}

// flattenHeadTree returns HEAD's tree flattened to (path, asset hash)
// pairs, or an empty slice if there is no HEAD commit yet.
func (r *Repository) flattenHeadTree() ([]struct {
	Path string
	Hash hashutil.Hash
}, error) {
	head, ok, err := r.headCommit()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	commit, err := r.loadCommit(head)
	if err != nil {
		return nil, fmt.Errorf("repo: load HEAD commit: %w", err)
	}
	tree, err := r.loadTree(commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("repo: load HEAD tree: %w", err)
	}
	return index.FlattenTree(tree, r.loadTree)
}
