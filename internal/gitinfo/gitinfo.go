// Copyright 2026 The Rlsr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gitinfo reads release metadata from a git repository.
package gitinfo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/rlsr/rlsr/internal/model"
)

// DefaultTag is used when no tag can be found.
const DefaultTag = "v0.0.0"

// Info is the git state of a working tree.
type Info struct {
	// False if the directory is not inside a git repository.
	IsRepo bool

	Tag         string
	PreviousTag string

	FullCommit  string
	ShortCommit string
	Branch      string

	IsDirty bool

	// True if HEAD is the commit Tag points to.
	IsAtTag bool
}

// Repo is a git repository.
type Repo struct {
	r *git.Repository
}

// Open opens the repository containing dir.
func Open(dir string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	return &Repo{r: r}, nil
}

// Read returns the git Info for dir.
// A directory outside of any repository is not an error, the Info returned has IsRepo set to false.
// If tag is set it is used as the release tag even if it does not exist yet.
func Read(dir, tag string) (Info, error) {
	repo, err := Open(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			if tag == "" {
				tag = DefaultTag
			}
			return Info{Tag: tag}, nil
		}
		return Info{}, err
	}
	return repo.Info(tag)
}

// Info returns the state of the repository.
func (r *Repo) Info(tag string) (Info, error) {
	info := Info{IsRepo: true}

	head, err := r.r.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// No commits yet.
			info.Tag = tag
			if info.Tag == "" {
				info.Tag = DefaultTag
			}
			return info, nil
		}
		return info, err
	}

	info.FullCommit = head.Hash().String()
	info.ShortCommit = info.FullCommit[:7]
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	wt, err := r.r.Worktree()
	if err == nil {
		status, err := wt.Status()
		if err != nil {
			return info, fmt.Errorf("git status: %w", err)
		}
		info.IsDirty = !status.IsClean()
	}

	tagged, err := r.TaggedCommits(head.Hash(), 2)
	if err != nil {
		return info, err
	}

	if tag == "" {
		if len(tagged) > 0 {
			info.Tag = tagged[0].Tag
			info.IsAtTag = tagged[0].Hash == head.Hash()
		}
		if len(tagged) > 1 {
			info.PreviousTag = tagged[1].Tag
		}
	} else {
		info.Tag = tag
		if h, err := r.ResolveTag(tag); err == nil {
			info.IsAtTag = h == head.Hash()
			before, err := r.TaggedCommits(h, 2)
			if err != nil {
				return info, err
			}
			for _, tc := range before {
				if tc.Hash != h {
					info.PreviousTag = tc.Tag
					break
				}
			}
		} else if len(tagged) > 0 {
			// The tag is not created yet.
			info.PreviousTag = tagged[0].Tag
		}
	}

	if info.Tag == "" {
		info.Tag = DefaultTag
	}

	return info, nil
}

// TaggedCommit is a commit with a tag pointing to it.
type TaggedCommit struct {
	Hash plumbing.Hash

	// The highest version tag pointing to the commit.
	Tag string
}

// TaggedCommits walks the history from start, newest first, and returns up to max tagged commits.
func (r *Repo) TaggedCommits(start plumbing.Hash, max int) ([]TaggedCommit, error) {
	tags, err := r.tagsByCommit()
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}

	iter, err := r.r.Log(&git.LogOptions{From: start, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var result []TaggedCommit
	err = iter.ForEach(func(c *object.Commit) error {
		names, ok := tags[c.Hash]
		if !ok {
			return nil
		}
		result = append(result, TaggedCommit{Hash: c.Hash, Tag: highestVersion(names)})
		if len(result) >= max {
			return storer.ErrStop
		}
		return nil
	})

	return result, err
}

// ResolveTag returns the commit the tag name points to.
func (r *Repo) ResolveTag(name string) (plumbing.Hash, error) {
	ref, err := r.r.Tag(name)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("tag %q: %w", name, err)
	}
	return r.peel(ref.Hash()), nil
}

// ResolveRevision returns the commit for a revision such as HEAD, a branch or a hash.
func (r *Repo) ResolveRevision(rev string) (plumbing.Hash, error) {
	h, err := r.r.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("revision %q: %w", rev, err)
	}
	return *h, nil
}

// Commits returns the commits reachable from to but not from from, newest first.
// A zero from returns the full history of to.
func (r *Repo) Commits(from, to plumbing.Hash) ([]*object.Commit, error) {
	exclude := make(map[plumbing.Hash]bool)
	if !from.IsZero() {
		iter, err := r.r.Log(&git.LogOptions{From: from})
		if err != nil {
			return nil, err
		}
		err = iter.ForEach(func(c *object.Commit) error {
			exclude[c.Hash] = true
			return nil
		})
		iter.Close()
		if err != nil {
			return nil, err
		}
	}

	iter, err := r.r.Log(&git.LogOptions{From: to, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if !exclude[c.Hash] {
			commits = append(commits, c)
		}
		return nil
	})

	return commits, err
}

func (r *Repo) tagsByCommit() (map[plumbing.Hash][]string, error) {
	iter, err := r.r.Tags()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	m := make(map[plumbing.Hash][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		h := r.peel(ref.Hash())
		m[h] = append(m[h], ref.Name().Short())
		return nil
	})

	return m, err
}

// peel returns the commit an annotated tag points to, or h itself.
func (r *Repo) peel(h plumbing.Hash) plumbing.Hash {
	tag, err := r.r.TagObject(h)
	if err != nil {
		return h
	}
	c, err := tag.Commit()
	if err != nil {
		return h
	}
	return c.Hash
}

// highestVersion returns the highest semver tag in names.
// Tags that are not versions sort before versions.
func highestVersion(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Slice(sorted, func(i, j int) bool {
		vi, erri := semver.NewVersion(sorted[i])
		vj, errj := semver.NewVersion(sorted[j])
		switch {
		case erri != nil && errj != nil:
			return sorted[i] < sorted[j]
		case erri != nil:
			return true
		case errj != nil:
			return false
		default:
			return vi.LessThan(vj)
		}
	})
	return sorted[len(sorted)-1]
}

// MetaOptions configures Meta.
type MetaOptions struct {
	ProjectName string

	// Force a snapshot build.
	Snapshot bool

	Env map[string]string
	Now time.Time
}

// Meta creates the run wide template data from i.
// The build is a snapshot if requested, if the tree is dirty, or if HEAD is not at the tag.
func (i Info) Meta(opts MetaOptions) model.TemplateMeta {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	m := model.TemplateMeta{
		ProjectName: opts.ProjectName,
		Tag:         i.Tag,
		PreviousTag: i.PreviousTag,
		Version:     strings.TrimPrefix(strings.TrimPrefix(i.Tag, "v"), "V"),
		FullCommit:  i.FullCommit,
		ShortCommit: i.ShortCommit,
		Branch:      i.Branch,
		IsDirty:     i.IsDirty,
		IsSnapshot:  opts.Snapshot || !i.IsRepo || i.IsDirty || !i.IsAtTag,
		Env:         opts.Env,
		Date:        now.UTC().Format(time.RFC3339),
		Timestamp:   now.Unix(),
		Now:         now,
	}

	if v, err := semver.NewVersion(i.Tag); err == nil {
		m.Major = v.Major()
		m.Minor = v.Minor()
		m.Patch = v.Patch()
		m.Prerelease = v.Prerelease()
		m.IsPrerelease = m.Prerelease != ""
	}

	return m
}
