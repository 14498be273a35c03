// Package refs implements dits' ref store: HEAD, refs/heads, refs/tags,
// refs/remotes, and their reflogs. Ref files are plain text under a
// filesystem tree (one file per ref, matching the dotgit layout go-git's
// storage/filesystem/dotgit package uses), updated with compare-and-swap
// semantics the way dotgit's setRef family checks an expected old value
// before writing, and guarded by a per-ref advisory lock file (<ref>.lock)
// taken with github.com/gofrs/flock, as bsc-erigon does for its datadir.
package refs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/dits-vcs/dits/internal/hashutil"
)

// Name is a fully-qualified ref name, e.g. "refs/heads/main" or "HEAD".
type Name string

const (
	Head          Name   = "HEAD"
	HeadsPrefix   string = "refs/heads/"
	TagsPrefix    string = "refs/tags/"
	RemotesPrefix string = "refs/remotes/"
)

// Store is a handle to one repository's ref tree, rooted at <repo>/.dits.
type Store struct {
	root string
}

// Open returns a Store rooted at gitDir (conventionally <repo>/.dits).
func Open(gitDir string) *Store {
	return &Store{root: gitDir}
}

func (s *Store) path(name Name) string {
	return filepath.Join(s.root, filepath.FromSlash(string(name)))
}

func (s *Store) lockPath(name Name) string {
	return s.path(name) + ".lock"
}

func (s *Store) acquire(name Name) (*flock.Flock, error) {
	dir := filepath.Dir(s.path(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("refs: create dir %s: %w", dir, err)
	}
	fl := flock.New(s.lockPath(name))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("refs: lock %s: %w", name, err)
	}
	return fl, nil
}

// Resolve follows symbolic refs (including HEAD) to a concrete hash.
func (s *Store) Resolve(name Name) (hashutil.Hash, error) {
	seen := map[Name]bool{}
	cur := name
	for {
		if seen[cur] {
			return hashutil.Hash{}, fmt.Errorf("%w: symbolic ref cycle at %s", ErrNotFound, cur)
		}
		seen[cur] = true

		raw, err := os.ReadFile(s.path(cur))
		if err != nil {
			if os.IsNotExist(err) {
				return hashutil.Hash{}, fmt.Errorf("%w: %s", ErrNotFound, cur)
			}
			return hashutil.Hash{}, fmt.Errorf("refs: read %s: %w", cur, err)
		}
		content := strings.TrimSpace(string(raw))
		if target, ok := strings.CutPrefix(content, "ref: "); ok {
			cur = Name(target)
			continue
		}
		return hashutil.ParseHash(content)
	}
}

// ReadHeadTarget returns HEAD's symbolic target (e.g. "refs/heads/main")
// and whether HEAD is attached (symbolic) rather than detached.
func (s *Store) ReadHeadTarget() (Name, bool, error) {
	raw, err := os.ReadFile(s.path(Head))
	if err != nil {
		return "", false, fmt.Errorf("refs: read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(raw))
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		return Name(target), true, nil
	}
	return "", false, nil
}

// SetHeadSymbolic points HEAD at a branch ref without touching the branch
// itself (used by switch/checkout onto an existing branch).
func (s *Store) SetHeadSymbolic(target Name) error {
	return writeViaRename(s.path(Head), []byte("ref: "+string(target)+"\n"))
}

// SetHeadDetached points HEAD directly at a commit hash.
func (s *Store) SetHeadDetached(h hashutil.Hash) error {
	return writeViaRename(s.path(Head), []byte(h.String()+"\n"))
}

// Update performs a compare-and-swap update of name: it succeeds only if
// the ref's current value equals old (a nil old means "must not
// currently exist"). This mirrors dotgit's setRef expected-old-value check.
func (s *Store) Update(name Name, newHash hashutil.Hash, old *hashutil.Hash) error {
	fl, err := s.acquire(name)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	current, err := s.Resolve(name)
	exists := err == nil
	if err != nil && !isNotFound(err) {
		return err
	}

	switch {
	case old == nil && exists:
		return fmt.Errorf("%w: %s already exists at %s", ErrCompareFailed, name, current)
	case old != nil && !exists:
		return fmt.Errorf("%w: %s does not exist, expected %s", ErrCompareFailed, name, *old)
	case old != nil && exists && current != *old:
		return fmt.Errorf("%w: %s is at %s, expected %s", ErrCompareFailed, name, current, *old)
	}

	return writeViaRename(s.path(name), []byte(newHash.String()+"\n"))
}

// Delete removes name after checking its current value matches old.
func (s *Store) Delete(name Name, old hashutil.Hash) error {
	fl, err := s.acquire(name)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	current, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if current != old {
		return fmt.Errorf("%w: %s is at %s, expected %s", ErrCompareFailed, name, current, old)
	}
	if err := os.Remove(s.path(name)); err != nil {
		return fmt.Errorf("refs: remove %s: %w", name, err)
	}
	return nil
}

// List returns every ref name under prefix (e.g. HeadsPrefix), sorted.
func (s *Store) List(prefix string) ([]Name, error) {
	base := filepath.Join(s.root, filepath.FromSlash(prefix))
	var out []Name
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, ".lock") || strings.HasSuffix(p, ".reflog") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, Name(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refs: list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ReflogEntry is one line of a ref's history.
type ReflogEntry struct {
	Old, New  hashutil.Hash
	Committer string
	TimestampN int64
	Message   string
}

func (s *Store) reflogPath(name Name) string {
	return s.path(name) + ".reflog"
}

// AppendReflog records one ref movement, preserving prior entries.
func (s *Store) AppendReflog(name Name, old, newHash hashutil.Hash, committer, message string, timestampN int64) error {
	path := s.reflogPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("refs: create reflog dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("refs: open reflog %s: %w", name, err)
	}
	defer f.Close()
	line := fmt.Sprintf("%s %s %s %d\t%s\n", old, newHash, committer, timestampN, strings.ReplaceAll(message, "\n", " "))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("refs: write reflog %s: %w", name, err)
	}
	return nil
}

// Reflog returns all recorded entries for name, oldest first.
func (s *Store) Reflog(name Name) ([]ReflogEntry, error) {
	f, err := os.Open(s.reflogPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("refs: open reflog %s: %w", name, err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		head := strings.Fields(fields[0])
		if len(head) != 4 {
			continue
		}
		var e ReflogEntry
		e.Old, err = hashutil.ParseHash(head[0])
		if err != nil {
			continue
		}
		e.New, err = hashutil.ParseHash(head[1])
		if err != nil {
			continue
		}
		e.Committer = head[2]
		fmt.Sscanf(head[3], "%d", &e.TimestampN)
		e.Message = fields[1]
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// pruneReflogBefore discards entries older than cutoff, keeping those at
// or after it.
func (s *Store) pruneReflogBefore(name Name, cutoff time.Time) error {
	entries, err := s.Reflog(name)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.TimestampN >= cutoff.UnixNano() {
			kept = append(kept, e)
		}
	}
	var body strings.Builder
	for _, e := range kept {
		fmt.Fprintf(&body, "%s %s %s %d\t%s\n", e.Old, e.New, e.Committer, e.TimestampN, e.Message)
	}
	return writeViaRename(s.reflogPath(name), []byte(body.String()))
}

// PruneReflogsBefore runs pruneReflogBefore across HEAD and every branch.
func (s *Store) PruneReflogsBefore(cutoff time.Time) error {
	if err := s.pruneReflogBefore(Head, cutoff); err != nil {
		return err
	}
	branches, err := s.List(HeadsPrefix)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if err := s.pruneReflogBefore(b, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func writeViaRename(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "ref-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
