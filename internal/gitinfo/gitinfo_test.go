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

package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var baseTime = time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

type testRepo struct {
	c    *qt.C
	dir  string
	repo *git.Repository
	n    int
}

func newTestRepo(c *qt.C) *testRepo {
	dir := c.TB.TempDir()
	repo, err := git.PlainInit(dir, false)
	c.Assert(err, qt.IsNil)
	return &testRepo{c: c, dir: dir, repo: repo}
}

func (r *testRepo) commit(msg string) plumbing.Hash {
	r.n++
	filename := filepath.Join(r.dir, "file.txt")
	r.c.Assert(os.WriteFile(filename, []byte(msg), 0o644), qt.IsNil)
	wt, err := r.repo.Worktree()
	r.c.Assert(err, qt.IsNil)
	_, err = wt.Add("file.txt")
	r.c.Assert(err, qt.IsNil)
	sig := &object.Signature{Name: "Jane", Email: "jane@example.org", When: baseTime.Add(time.Duration(r.n) * time.Hour)}
	h, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	r.c.Assert(err, qt.IsNil)
	return h
}

func (r *testRepo) tag(name string, h plumbing.Hash, annotated bool) {
	var opts *git.CreateTagOptions
	if annotated {
		opts = &git.CreateTagOptions{
			Message: "Release " + name,
			Tagger:  &object.Signature{Name: "Jane", Email: "jane@example.org", When: baseTime},
		}
	}
	_, err := r.repo.CreateTag(name, h, opts)
	r.c.Assert(err, qt.IsNil)
}

func TestReadNotARepo(t *testing.T) {
	c := qt.New(t)

	info, err := Read(t.TempDir(), "")
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsRepo, qt.IsFalse)
	c.Assert(info.Tag, qt.Equals, DefaultTag)

	info, err = Read(t.TempDir(), "v2.0.0")
	c.Assert(err, qt.IsNil)
	c.Assert(info.Tag, qt.Equals, "v2.0.0")
}

func TestReadTags(t *testing.T) {
	c := qt.New(t)

	r := newTestRepo(c)
	h1 := r.commit("first")
	r.tag("v0.9.0", h1, false)
	h2 := r.commit("second")
	r.tag("v1.0.0", h2, true)
	r.tag("not-a-version", h2, false)
	h3 := r.commit("third")

	info, err := Read(r.dir, "")
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsRepo, qt.IsTrue)
	c.Assert(info.Tag, qt.Equals, "v1.0.0")
	c.Assert(info.PreviousTag, qt.Equals, "v0.9.0")
	c.Assert(info.FullCommit, qt.Equals, h3.String())
	c.Assert(info.ShortCommit, qt.Equals, h3.String()[:7])
	c.Assert(info.Branch, qt.Equals, "master")
	c.Assert(info.IsAtTag, qt.IsFalse)
	c.Assert(info.IsDirty, qt.IsFalse)

	r.tag("v1.1.0-beta.1", h3, false)
	info, err = Read(r.dir, "")
	c.Assert(err, qt.IsNil)
	c.Assert(info.Tag, qt.Equals, "v1.1.0-beta.1")
	c.Assert(info.PreviousTag, qt.Equals, "v1.0.0")
	c.Assert(info.IsAtTag, qt.IsTrue)

	// A tag that does not exist yet.
	info, err = Read(r.dir, "v1.1.0")
	c.Assert(err, qt.IsNil)
	c.Assert(info.Tag, qt.Equals, "v1.1.0")
	c.Assert(info.PreviousTag, qt.Equals, "v1.1.0-beta.1")
	c.Assert(info.IsAtTag, qt.IsFalse)

	// An existing tag.
	info, err = Read(r.dir, "v1.0.0")
	c.Assert(err, qt.IsNil)
	c.Assert(info.PreviousTag, qt.Equals, "v0.9.0")

	c.Assert(os.WriteFile(filepath.Join(r.dir, "file.txt"), []byte("changed"), 0o644), qt.IsNil)
	info, err = Read(r.dir, "")
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsDirty, qt.IsTrue)
}

func TestCommits(t *testing.T) {
	c := qt.New(t)

	r := newTestRepo(c)
	h1 := r.commit("first")
	r.tag("v1.0.0", h1, true)
	r.commit("second")
	h3 := r.commit("third")

	repo, err := Open(r.dir)
	c.Assert(err, qt.IsNil)

	from, err := repo.ResolveTag("v1.0.0")
	c.Assert(err, qt.IsNil)
	c.Assert(from, qt.Equals, h1)

	to, err := repo.ResolveRevision("HEAD")
	c.Assert(err, qt.IsNil)
	c.Assert(to, qt.Equals, h3)

	commits, err := repo.Commits(from, to)
	c.Assert(err, qt.IsNil)
	c.Assert(commits, qt.HasLen, 2)
	c.Assert(commits[0].Message, qt.Equals, "third")
	c.Assert(commits[1].Message, qt.Equals, "second")

	all, err := repo.Commits(plumbing.ZeroHash, to)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 3)

	_, err = repo.ResolveTag("v9.9.9")
	c.Assert(err, qt.ErrorMatches, `tag "v9.9.9": .*`)
}

func TestMeta(t *testing.T) {
	c := qt.New(t)

	now := time.Date(2024, time.June, 2, 3, 4, 5, 0, time.UTC)
	info := Info{
		IsRepo:      true,
		Tag:         "v1.2.3-rc.1",
		PreviousTag: "v1.2.2",
		FullCommit:  "0123456789abcdef",
		ShortCommit: "0123456",
		Branch:      "main",
		IsAtTag:     true,
	}

	m := info.Meta(MetaOptions{ProjectName: "myapp", Now: now, Env: map[string]string{"A": "b"}})
	c.Assert(m.ProjectName, qt.Equals, "myapp")
	c.Assert(m.Version, qt.Equals, "1.2.3-rc.1")
	c.Assert(m.Major, qt.Equals, uint64(1))
	c.Assert(m.Minor, qt.Equals, uint64(2))
	c.Assert(m.Patch, qt.Equals, uint64(3))
	c.Assert(m.Prerelease, qt.Equals, "rc.1")
	c.Assert(m.IsPrerelease, qt.IsTrue)
	c.Assert(m.IsSnapshot, qt.IsFalse)
	c.Assert(m.Date, qt.Equals, "2024-06-02T03:04:05Z")
	c.Assert(m.Timestamp, qt.Equals, now.Unix())
	c.Assert(m.Env["A"], qt.Equals, "b")

	c.Assert(info.Meta(MetaOptions{Snapshot: true}).IsSnapshot, qt.IsTrue)
	info.IsDirty = true
	c.Assert(info.Meta(MetaOptions{}).IsSnapshot, qt.IsTrue)
	info.IsDirty = false
	info.IsAtTag = false
	c.Assert(info.Meta(MetaOptions{}).IsSnapshot, qt.IsTrue)

	// Not a version.
	m = Info{Tag: "nightly"}.Meta(MetaOptions{})
	c.Assert(m.Major, qt.Equals, uint64(0))
	c.Assert(m.Version, qt.Equals, "nightly")
}
