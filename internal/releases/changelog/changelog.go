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

// Package changelog collects the commits of a release and renders the release notes.
package changelog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rlsr/rlsr/internal/common/matchers"
	"github.com/rlsr/rlsr/internal/common/templ"
	"github.com/rlsr/rlsr/internal/gitinfo"
	"github.com/rlsr/rlsr/internal/model"
	"github.com/rlsr/rlsr/staticfiles"
)

// CollectChanges collects changes according to the given options.
// If opts.ResolveUserName is set, it will be used to resolve Change.Username (e.g. GitHub login).
func CollectChanges(opts Options) (Changes, error) {
	c := &collector{opts: opts}
	return c.collect()
}

// GroupByTitleFunc groups g by title according to the grouping function f.
// If f returns false, that change item is not included in the result.
func GroupByTitleFunc(g Changes, f func(Change) (string, int, bool)) ([]TitleChanges, error) {
	var ngi []TitleChanges
	for _, gi := range g {
		title, i, ok := f(gi)
		if !ok {
			continue
		}
		idx := -1
		for j, ngi := range ngi {
			if ngi.Title == title {
				idx = j
				break
			}
		}
		if idx == -1 {
			ngi = append(ngi, TitleChanges{Title: title, ordinal: i + 1})
			idx = len(ngi) - 1
		}
		ngi[idx].Changes = append(ngi[idx].Changes, gi)
	}

	sort.SliceStable(ngi, func(i, j int) bool {
		return ngi[i].ordinal < ngi[j].ordinal
	})

	return ngi, nil
}

// GroupByConventionalType groups changes by the type prefix of the subject, e.g. "fix: ...".
// Merge commits are skipped.
func GroupByConventionalType(c Change) (string, int, bool) {
	if strings.HasPrefix(c.Subject, "Merge ") {
		return "", 0, false
	}
	typ, _, found := strings.Cut(c.Subject, ":")
	if !found {
		return "Other", 3, true
	}
	typ = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(typ)), "!")
	if i := strings.Index(typ, "("); i > 0 {
		typ = typ[:i]
	}
	switch typ {
	case "feat":
		return "Features", 0, true
	case "fix":
		return "Bug fixes", 1, true
	case "docs":
		return "Documentation", 2, true
	default:
		return "Other", 3, true
	}
}

// Change represents a git commit.
type Change struct {
	// Fetched from git log.
	Hash    string
	Author  string
	Subject string
	Body    string

	Issues []int

	// Resolved from GitHub.
	Username string
}

// Changes represents a list of git commits.
type Changes []Change

// Options for collecting changes.
type Options struct {
	// Can be nil.
	// ResolveUserName returns the username for the given author (email address) and commit sha.
	ResolveUserName func(commit, author string) (string, error)

	// Can be nil.
	// Commits with a subject matching Exclude are skipped.
	Exclude matchers.Matcher

	// All of these can be empty.
	PrevTag   string
	Tag       string
	Commitish string
	RepoPath  string
}

// TitleChanges represents a list of changes grouped by title.
type TitleChanges struct {
	Title   string
	Changes Changes

	ordinal int
}

type collector struct {
	opts Options
}

func (c *collector) collect() (Changes, error) {
	repoPath := c.opts.RepoPath
	if repoPath == "" {
		repoPath = "."
	}
	repo, err := gitinfo.Open(repoPath)
	if err != nil {
		return nil, err
	}

	from, to, err := c.resolveRange(repo)
	if err != nil {
		return nil, err
	}

	commits, err := repo.Commits(from, to)
	if err != nil {
		return nil, err
	}

	var g Changes
	for _, commit := range commits {
		subject, body, _ := strings.Cut(strings.TrimSpace(commit.Message), "\n")
		subject = strings.TrimSpace(subject)
		if c.opts.Exclude != nil && c.opts.Exclude.Match(subject) {
			continue
		}
		body = strings.TrimSpace(body)
		g = append(g, Change{
			Hash:    commit.Hash.String()[:7],
			Author:  commit.Author.Email,
			Subject: subject,
			Body:    body,
			Issues:  parseIssues(body),
		})
	}

	if c.opts.ResolveUserName != nil {
		for i, gi := range g {
			username, err := c.opts.ResolveUserName(gi.Hash, gi.Author)
			if err != nil {
				return nil, err
			}
			g[i].Username = username
		}
	}

	return g, nil
}

// resolveRange returns the commits to log between.
// A Tag that does not exist yet is assumed to be created from Commitish.
// Without a PrevTag the closest tagged commit before the end of the range is used.
func (c *collector) resolveRange(repo *gitinfo.Repo) (from, to plumbing.Hash, err error) {
	if c.opts.PrevTag != "" {
		from, err = repo.ResolveTag(c.opts.PrevTag)
		if err != nil {
			return from, to, fmt.Errorf("prevTag %q does not exist", c.opts.PrevTag)
		}
	}

	if c.opts.Tag != "" {
		if h, err := repo.ResolveTag(c.opts.Tag); err == nil {
			to = h
		}
	}

	if to.IsZero() {
		commitish := c.opts.Commitish
		if commitish == "" {
			commitish = "HEAD"
		}
		if to, err = repo.ResolveRevision(commitish); err != nil {
			return from, to, err
		}
	}

	if from.IsZero() {
		tagged, err := repo.TaggedCommits(to, 2)
		if err != nil {
			return from, to, err
		}
		for _, tc := range tagged {
			if tc.Hash != to {
				from = tc.Hash
				break
			}
		}
	}

	return from, to, nil
}

var issueRe = regexp.MustCompile(`(?i)(?:Updates?|Closes?|Fix.*|See) #(\d+)`)

func parseIssues(body string) []int {
	var i []int
	m := issueRe.FindAllStringSubmatch(body, -1)
	for _, mm := range m {
		issueID, err := strconv.Atoi(mm[1])
		if err != nil {
			continue
		}
		i = append(i, issueID)
	}
	return i
}

// ReleaseNotesData is the data passed to the release notes template.
type ReleaseNotesData struct {
	Meta         model.TemplateMeta
	ChangeGroups []TitleChanges
}

// RenderReleaseNotes writes the release notes for changes to w.
// templateFilename may be empty, in which case the built-in template is used.
func RenderReleaseNotes(w io.Writer, templateFilename string, meta model.TemplateMeta, changes Changes) error {
	tmpl := staticfiles.ReleaseNotesTemplate
	if templateFilename != "" {
		b, err := os.ReadFile(templateFilename)
		if err != nil {
			return err
		}
		tmpl, err = template.New("release-notes").Funcs(templ.BuiltInFuncs).Parse(string(b))
		if err != nil {
			return fmt.Errorf("release notes template %q: %w", templateFilename, err)
		}
	}

	groups, err := GroupByTitleFunc(changes, GroupByConventionalType)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ReleaseNotesData{Meta: meta, ChangeGroups: groups}); err != nil {
		return err
	}

	_, err = io.WriteString(w, strings.TrimSpace(buf.String())+"\n")
	return err
}
