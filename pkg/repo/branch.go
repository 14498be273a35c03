package repo

import (
	"fmt"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/refs"
)

// CreateBranch creates refs/heads/name pointing at HEAD's current commit.
func (r *Repository) CreateBranch(name string) error {
	head, ok, err := r.headCommit()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("repo: cannot branch with no commits yet")
	}
	return r.Refs.Update(refs.Name(refs.HeadsPrefix+name), head, nil)
}

// CreateTag creates refs/tags/name pointing at HEAD's current commit.
func (r *Repository) CreateTag(name string) error {
	head, ok, err := r.headCommit()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("repo: cannot tag with no commits yet")
	}
	return r.Refs.Update(refs.Name(refs.TagsPrefix+name), head, nil)
}

// Branches lists every local branch name (without the refs/heads/ prefix).
func (r *Repository) Branches() ([]string, error) {
	names, err := r.Refs.List(refs.HeadsPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)[len(refs.HeadsPrefix):]
	}
	return out, nil
}

// Tags lists every tag name (without the refs/tags/ prefix).
func (r *Repository) Tags() ([]string, error) {
	names, err := r.Refs.List(refs.TagsPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)[len(refs.TagsPrefix):]
	}
	return out, nil
}

// Switch moves HEAD to branch name (attached) and checks out its tree into
// the working copy, or switches HEAD into a detached state at an explicit
// commit hash when detach is true.
func (r *Repository) Switch(name string, detach bool) error {
	if detach {
		h, err := hashutil.ParseHash(name)
		if err != nil {
			return fmt.Errorf("repo: %q is not a commit hash: %w", name, err)
		}
		if err := r.Refs.SetHeadDetached(h); err != nil {
			return err
		}
		return r.checkoutCommit(h)
	}

	branch := refs.Name(refs.HeadsPrefix + name)
	h, err := r.Refs.Resolve(branch)
	if err != nil {
		return fmt.Errorf("repo: branch %s not found: %w", name, err)
	}
	if err := r.Refs.SetHeadSymbolic(branch); err != nil {
		return err
	}
	return r.checkoutCommit(h)
}
