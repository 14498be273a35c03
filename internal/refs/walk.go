package refs

import (
	"container/heap"

	"github.com/dits-vcs/dits/internal/hashutil"
)

// CommitParents resolves a commit hash to its parent hashes; pkg/repo
// supplies this by reading commit objects out of the object store.
type CommitParents func(h hashutil.Hash) ([]hashutil.Hash, error)

// CommitInfo is the slice of a commit object MergeBase needs: its parent
// edges plus the two fields its generation-number heuristic runs on.
type CommitInfo struct {
	Parents    []hashutil.Hash
	Generation uint64
	Timestamp  int64 // UTC nanoseconds, earlier sorts first on a tie
}

// CommitInfoFunc resolves a commit hash to the CommitInfo MergeBase walks
// on; pkg/repo supplies this by reading commit objects out of the object
// store and exposing their cached generation number.
type CommitInfoFunc func(h hashutil.Hash) (CommitInfo, error)

// IsAncestor reports whether candidate is reachable by following parent
// links from start, using a pre-order stack walk in the style of go-git's
// commitPreIterator (plumbing/object/commit_walker.go), generalized from
// its *Commit-typed stack to a bare hash frontier.
func IsAncestor(start, candidate hashutil.Hash, parents CommitParents) (bool, error) {
	if start == candidate {
		return true, nil
	}
	seen := map[hashutil.Hash]bool{start: true}
	stack := []hashutil.Hash{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ps, err := parents(cur)
		if err != nil {
			return false, err
		}
		for _, p := range ps {
			if p == candidate {
				return true, nil
			}
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return false, nil
}

const (
	colorA uint8 = 1 << iota
	colorB
	colorBoth = colorA | colorB
)

// heapItem is a commit frontier node ordered for commitHeap: highest
// generation first (the commit-graph generation-number heuristic lets the
// walk expand the side closest to the tips before descending further
// back), ties broken by earliest timestamp.
type heapItem struct {
	hash       hashutil.Hash
	generation uint64
	timestamp  int64
}

// commitHeap is a container/heap priority queue of frontier commits,
// popping the highest-generation (and, on a tie, earliest-written) commit
// first — the same generation-number-assisted walk order git's
// commit-graph uses to bound merge-base searches.
type commitHeap []heapItem

func (h commitHeap) Len() int { return len(h) }
func (h commitHeap) Less(i, j int) bool {
	if h[i].generation != h[j].generation {
		return h[i].generation > h[j].generation
	}
	return h[i].timestamp < h[j].timestamp
}
func (h commitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *commitHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *commitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeBase finds the best common ancestor of a and b: a two-color paint
// of the DAG (colorA from a, colorB from b) expanded through a
// generation-ordered max-heap frontier rather than an unguided stack walk,
// so the highest (nearest-to-tip) candidate is always considered before
// the walk descends further into history. A commit's color is looked up
// fresh from the colors map at pop time rather than carried on the heap
// item, so a node already queued by one side that is later reached by the
// other side before being popped doesn't need to be re-pushed — updating
// its color is enough. The first commit popped carrying both colors is the
// nearest common ancestor; among equally-deep candidates the heap's
// timestamp tie-break surfaces the earliest-written one first.
func MergeBase(a, b hashutil.Hash, info CommitInfoFunc) (hashutil.Hash, bool, error) {
	if a == b {
		return a, true, nil
	}

	colors := map[hashutil.Hash]uint8{}
	pushed := map[hashutil.Hash]bool{}
	q := &commitHeap{}
	heap.Init(q)

	push := func(h hashutil.Hash, color uint8) error {
		colors[h] |= color
		if pushed[h] {
			return nil
		}
		pushed[h] = true
		ci, err := info(h)
		if err != nil {
			return err
		}
		heap.Push(q, heapItem{hash: h, generation: ci.Generation, timestamp: ci.Timestamp})
		return nil
	}

	if err := push(a, colorA); err != nil {
		return hashutil.Hash{}, false, err
	}
	if err := push(b, colorB); err != nil {
		return hashutil.Hash{}, false, err
	}

	for q.Len() > 0 {
		item := heap.Pop(q).(heapItem)
		if colors[item.hash] == colorBoth {
			return item.hash, true, nil
		}
		ci, err := info(item.hash)
		if err != nil {
			return hashutil.Hash{}, false, err
		}
		c := colors[item.hash]
		for _, p := range ci.Parents {
			if err := push(p, c); err != nil {
				return hashutil.Hash{}, false, err
			}
		}
	}
	return hashutil.Hash{}, false, nil
}
