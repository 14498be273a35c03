package repo

import (
	"sort"
	"strings"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
)

// treeNode is one directory level of the trie built from flat staged
// paths before it is folded bottom-up into stored manifest.Tree objects.
type treeNode struct {
	files map[string]index.Entry
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{files: map[string]index.Entry{}, dirs: map[string]*treeNode{}}
}

func (n *treeNode) insert(parts []string, e index.Entry) {
	if len(parts) == 1 {
		n.files[parts[0]] = e
		return
	}
	child, ok := n.dirs[parts[0]]
	if !ok {
		child = newTreeNode()
		n.dirs[parts[0]] = child
	}
	child.insert(parts[1:], e)
}

// buildTree writes one manifest.Tree object per directory level reachable
// from entries, returning the root tree's hash. Entries must be the
// index's normal-stage (stage 0) entries.
func (r *Repository) buildTree(entries []index.Entry) (hashutil.Hash, error) {
	root := newTreeNode()
	for _, e := range entries {
		parts := strings.Split(e.Path, "/")
		root.insert(parts, e)
	}
	return r.storeTreeNode(root)
}

func (r *Repository) storeTreeNode(n *treeNode) (hashutil.Hash, error) {
	tree := &manifest.Tree{}
	for name, e := range n.files {
		tree.Entries = append(tree.Entries, manifest.TreeEntry{
			Name: name,
			Kind: manifest.EntryAsset,
			Hash: e.AssetHash,
			Mode: e.Mode,
		})
	}
	for name, child := range n.dirs {
		childHash, err := r.storeTreeNode(child)
		if err != nil {
			return hashutil.Hash{}, err
		}
		tree.Entries = append(tree.Entries, manifest.TreeEntry{
			Name: name,
			Kind: manifest.EntryTree,
			Hash: childHash,
			Mode: 0o040000,
		})
	}
	sort.Slice(tree.Entries, func(i, j int) bool { return tree.Entries[i].Name < tree.Entries[j].Name })

	h, _, err := r.Store.Put(objectstore.KindTree, tree.Encode())
	if err != nil {
		return hashutil.Hash{}, err
	}
	return h, nil
}
