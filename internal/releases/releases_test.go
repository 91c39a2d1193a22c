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

package releases

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bep/logg"
	"github.com/bep/workers"
	qt "github.com/frankban/quicktest"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rlsr/rlsr/internal/builds"
	"github.com/rlsr/rlsr/internal/checksums"
	"github.com/rlsr/rlsr/internal/checksums/checksumtypes"
	"github.com/rlsr/rlsr/internal/common/errorsh"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/common/matchers"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/metrics"
	"github.com/rlsr/rlsr/internal/model"
	"github.com/rlsr/rlsr/internal/publishers"
	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
)

var testMeta = model.TemplateMeta{
	ProjectName: "app",
	Tag:         "v1.0.0",
	Version:     "1.0.0",
	Major:       1,
}

func skipIfNoShell(t testing.TB) {
	if runtime.GOOS == "windows" {
		t.Skip("shell builds are tested on Unix only")
	}
}

// newTestRelease creates a release with one build per os in oss.
// The build for failOS exits with status 3.
func newTestRelease(c *qt.C, failOS string, oss ...string) config.Release {
	srcDir := c.TB.TempDir()
	r := config.Release{
		Name:       "myrelease",
		DistFolder: filepath.Join(c.TB.TempDir(), "dist"),
		Checksum:   &config.Checksum{},
		Builds: []config.Build{
			{
				Name: "app-{{ .Meta.Os }}",
				Command: fmt.Sprintf(
					`{{ if eq .Meta.Os %q }}exit 3{{ end }}
mkdir -p %s/{{ .Meta.Os }} && printf "{{ .Meta.Os }}" > %s/{{ .Meta.Os }}/app`, failOS, srcDir, srcDir),
				Artifact:    srcDir + "/{{ .Meta.Os }}/app",
				ArchiveName: "app_{{ .Meta.Version }}_{{ .Meta.Os }}",
				Matrix:      []map[string]any{{"os": toAny(oss)}},
			},
		},
	}
	c.Assert(r.Init(), qt.IsNil)
	return r
}

func toAny(s []string) []any {
	var a []any
	for _, v := range s {
		a = append(a, v)
	}
	return a
}

func newTestOrchestrator(opts Options) *Orchestrator {
	opts.Meta = testMeta
	if opts.Workforce == nil {
		opts.Workforce = workers.New(4)
	}
	return New(opts)
}

func baseNames(paths []string) []string {
	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	return names
}

func TestBuildParallel(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux", "darwin", "windows", "freebsd")
	m := metrics.New()
	result, err := newTestOrchestrator(Options{Metrics: m}).Build(context.Background(), r)
	c.Assert(err, qt.IsNil)
	c.Assert(baseNames(result.Archives), qt.DeepEquals, []string{
		"app_1.0.0_darwin.zip", "app_1.0.0_freebsd.zip", "app_1.0.0_linux.zip", "app_1.0.0_windows.zip",
	})
	c.Assert(result.ChecksumFile, qt.Equals, filepath.Join(r.DistFolder, "checksums.txt"))

	// The manifest lists the archives in completion order.
	cs, err := checksums.New(checksumtypes.SHA256)
	c.Assert(err, qt.IsNil)
	var want strings.Builder
	for _, archive := range result.Archives {
		digest, err := cs.Compute(archive)
		c.Assert(err, qt.IsNil)
		fmt.Fprintf(&want, "%s\t%s\n", filepath.Base(archive), digest)
	}
	got, err := os.ReadFile(result.ChecksumFile)
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, want.String())
}

func TestBuildOneFailing(t *testing.T) {
	skipIfNoShell(t)

	for _, sequential := range []bool{false, true} {
		t.Run(fmt.Sprintf("sequential=%t", sequential), func(t *testing.T) {
			c := qt.New(t)

			r := newTestRelease(c, "darwin", "linux", "darwin", "windows")
			r.Sequential = sequential

			result, err := newTestOrchestrator(Options{}).Build(context.Background(), r)
			c.Assert(err, qt.Not(qt.IsNil))
			c.Assert(baseNames(result.Archives), qt.DeepEquals, []string{"app_1.0.0_linux.zip", "app_1.0.0_windows.zip"})
			c.Assert(result.ChecksumFile, qt.Equals, "")

			var ferr *BuildsFailedError
			c.Assert(errors.As(err, &ferr), qt.IsTrue)
			c.Assert(ferr.Total, qt.Equals, 3)
			c.Assert(ferr.Failures, qt.HasLen, 1)
			c.Assert(ferr.Failures[0].Build, qt.Equals, "app-darwin")
			c.Assert(err, qt.ErrorMatches, "(?s)release \"myrelease\": 1 of 3 builds failed:\n\tbuild \"app-darwin\": build failed: app-darwin: \"exit 3\\\\nmkdir -p .*\": exit status 3")

			var eerr *builds.ExecError
			c.Assert(errors.As(err, &eerr), qt.IsTrue)
			c.Assert(eerr.Stage, qt.Equals, builds.StageBuild)

			// No manifest is written when a build fails.
			_, err = os.Stat(r.ChecksumsPath())
			c.Assert(os.IsNotExist(err), qt.IsTrue)
		})
	}
}

func TestBuildSequentialAndParallelProduceSameArchives(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	oss := []string{"linux", "darwin", "windows", "netbsd", "openbsd"}

	var archiveSets [][]string
	for _, sequential := range []bool{true, false} {
		r := newTestRelease(c, "", oss...)
		r.Sequential = sequential
		result, err := newTestOrchestrator(Options{}).Build(context.Background(), r)
		c.Assert(err, qt.IsNil)
		archiveSets = append(archiveSets, baseNames(result.Archives))
	}

	c.Assert(archiveSets[0], qt.HasLen, len(oss))
	c.Assert(archiveSets[0], qt.DeepEquals, archiveSets[1])
}

func TestBuildSequentialOrder(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux", "darwin", "windows")
	r.Sequential = true
	result, err := newTestOrchestrator(Options{}).Build(context.Background(), r)
	c.Assert(err, qt.IsNil)

	var names []string
	for _, a := range result.Archives {
		names = append(names, filepath.Base(a))
	}
	// Axis values keep their configured order.
	c.Assert(names, qt.DeepEquals, []string{"app_1.0.0_linux.zip", "app_1.0.0_darwin.zip", "app_1.0.0_windows.zip"})
}

type panickingRunner struct {
	builds.CommandRunner
}

func (r panickingRunner) RunCommand(ctx context.Context, env []string, name string, args ...string) (string, error) {
	if strings.Contains(strings.Join(args, " "), "/windows/") {
		panic("boom")
	}
	return r.CommandRunner.RunCommand(ctx, env, name, args...)
}

func TestBuildPanicIsRecovered(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux", "windows")
	runner := panickingRunner{builds.NewCommandRunner(logging.Discard().WithLevel(logg.LevelDebug))}
	result, err := newTestOrchestrator(Options{Runner: runner}).Build(context.Background(), r)
	c.Assert(baseNames(result.Archives), qt.DeepEquals, []string{"app_1.0.0_linux.zip"})

	var perr *errorsh.PanicError
	c.Assert(errors.As(err, &perr), qt.IsTrue)
	c.Assert(perr.Value, qt.Equals, "boom")

	var ferr *BuildsFailedError
	c.Assert(errors.As(err, &ferr), qt.IsTrue)
	c.Assert(ferr.Failures[0].Build, qt.Equals, "app-windows")
}

func TestBuildFilter(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux", "darwin", "windows")
	m, err := matchers.Glob("app-*win*")
	c.Assert(err, qt.IsNil)

	result, err := newTestOrchestrator(Options{BuildFilter: m}).Build(context.Background(), r)
	c.Assert(err, qt.IsNil)
	c.Assert(baseNames(result.Archives), qt.DeepEquals, []string{"app_1.0.0_windows.zip"})

	c.Run("No match", func(c *qt.C) {
		result, err := newTestOrchestrator(Options{BuildFilter: matchers.Not(matchers.MatchEverything)}).Build(context.Background(), r)
		c.Assert(err, qt.IsNil)
		c.Assert(result.Archives, qt.IsNil)
	})
}

func TestBuildDistDirOverride(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux")
	distDir := filepath.Join(t.TempDir(), "other")
	result, err := newTestOrchestrator(Options{DistDir: distDir}).Build(context.Background(), r)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Archives, qt.DeepEquals, []string{filepath.Join(distDir, "app_1.0.0_linux.zip")})
	c.Assert(result.ChecksumFile, qt.Equals, filepath.Join(distDir, "checksums.txt"))
}

func TestBuildTry(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux", "darwin")
	result, err := newTestOrchestrator(Options{Try: true}).Build(context.Background(), r)
	c.Assert(err, qt.IsNil)
	c.Assert(baseNames(result.Archives), qt.DeepEquals, []string{"app_1.0.0_darwin.zip", "app_1.0.0_linux.zip"})

	_, err = os.Stat(r.DistFolder)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestBuildBeforeHookFails(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "", "linux")
	r.Hooks = &config.Hooks{Before: []string{"echo {{ .Meta.Tag }}", "exit 7"}}

	result, err := newTestOrchestrator(Options{}).Build(context.Background(), r)
	c.Assert(err, qt.ErrorMatches, `before hook failed: myrelease: "exit 7": exit status 7`)
	c.Assert(result.Archives, qt.IsNil)

	_, err = os.Stat(r.DistFolder)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

// newInvalidBuildxRelease creates a release whose matrix sets load without tags.
// Its before hook creates marker.
func newInvalidBuildxRelease(c *qt.C, marker string) config.Release {
	r := config.Release{
		Name:       "images",
		DistFolder: filepath.Join(c.TB.TempDir(), "dist"),
		Hooks:      &config.Hooks{Before: []string{"touch " + marker}},
		Builds: []config.Build{
			{
				Name:   "image",
				Buildx: &config.Buildx{Context: "."},
				Matrix: []map[string]any{{"load": []any{"true"}}},
			},
		},
	}
	c.Assert(r.Init(), qt.IsNil)
	return r
}

func TestBuildInvalidMatrixFailsBeforeHooks(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	marker := filepath.Join(t.TempDir(), "before")
	r := newInvalidBuildxRelease(c, marker)

	runner := &countingRunner{CommandRunner: builds.NewCommandRunner(logging.Discard().WithLevel(logg.LevelDebug))}
	_, err := newTestOrchestrator(Options{Runner: runner}).Build(context.Background(), r)
	c.Assert(err, qt.ErrorMatches, `releases: "images": builds: "image": matrix .*: must set tags when load is true`)
	var cerr *model.ConfigError
	c.Assert(err, qt.ErrorAs, &cerr)

	c.Assert(runner.count(), qt.Equals, 0)
	_, err = os.Stat(marker)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
	_, err = os.Stat(r.DistFolder)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestPrepare(t *testing.T) {
	c := qt.New(t)

	r := newTestRelease(c, "", "linux", "darwin", "windows")
	m, err := matchers.Glob("app-*in*")
	c.Assert(err, qt.IsNil)
	distDir := filepath.Join(t.TempDir(), "other")

	o := newTestOrchestrator(Options{BuildFilter: m, DistDir: distDir})
	prepared, err := o.Prepare(r)
	c.Assert(err, qt.IsNil)
	c.Assert(prepared.Prepared, qt.IsTrue)
	c.Assert(prepared.DistFolder, qt.Equals, distDir)
	var oss []string
	for _, b := range prepared.Expanded {
		oss = append(oss, b.Os)
	}
	c.Assert(oss, qt.DeepEquals, []string{"darwin", "windows"})

	// The input is left alone.
	c.Assert(r.Prepared, qt.IsFalse)
	c.Assert(r.Expanded, qt.IsNil)

	again, err := o.Prepare(prepared)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Expanded, qt.HasLen, 2)

	c.Run("Template error", func(c *qt.C) {
		r := newTestRelease(c, "", "linux")
		r.Builds[0].ArchiveName = "app_{{ .Meta.Os | nosuchfunc }}"
		_, err := o.Prepare(r)
		c.Assert(err, qt.ErrorMatches, `releases: "myrelease": builds: "app-linux": failed to parse template.*`)
	})

	c.Run("Hook template error", func(c *qt.C) {
		r := newTestRelease(c, "", "linux")
		r.Hooks = &config.Hooks{After: []string{"echo {{ .Meta.Tag"}}
		_, err := o.Prepare(r)
		c.Assert(err, qt.ErrorMatches, `releases: "myrelease": hooks: failed to parse template.*`)
	})
}

func TestPrepareAllFailsBeforeAnyRelease(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	marker := filepath.Join(t.TempDir(), "before")
	first := newTestRelease(c, "", "linux")
	first.Hooks = &config.Hooks{Before: []string{"touch " + marker}}
	second := newInvalidBuildxRelease(c, marker)

	runner := &countingRunner{CommandRunner: builds.NewCommandRunner(logging.Discard().WithLevel(logg.LevelDebug))}
	o := newTestOrchestrator(Options{Runner: runner})

	prepared, err := o.PrepareAll([]config.Release{first, second})
	c.Assert(err, qt.ErrorMatches, `releases: "images": .*must set tags when load is true`)
	c.Assert(prepared, qt.IsNil)
	c.Assert(runner.count(), qt.Equals, 0)
	_, err = os.Stat(first.DistFolder)
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	prepared, err = o.PrepareAll([]config.Release{first})
	c.Assert(err, qt.IsNil)
	result, err := o.Build(context.Background(), prepared[0])
	c.Assert(err, qt.IsNil)
	c.Assert(baseNames(result.Archives), qt.DeepEquals, []string{"app_1.0.0_linux.zip"})
	c.Assert(runner.count(), qt.Equals, 2)
}

type countingRunner struct {
	builds.CommandRunner

	mu sync.Mutex
	n  int
}

func (r *countingRunner) RunCommand(ctx context.Context, env []string, name string, args ...string) (string, error) {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	return r.CommandRunner.RunCommand(ctx, env, name, args...)
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

type recordingPublisher struct {
	typ publishtypes.Type
	err error

	mu       sync.Mutex
	requests []publishers.Request
}

func (p *recordingPublisher) Type() publishtypes.Type { return p.typ }

func (p *recordingPublisher) Publish(ctx context.Context, req publishers.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.err
}

func TestRelease(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	markerDir := t.TempDir()
	r := newTestRelease(c, "", "linux", "darwin")
	r.Hooks = &config.Hooks{After: []string{fmt.Sprintf("touch %s/{{ .Meta.Tag }}", markerDir)}}

	github := &recordingPublisher{typ: publishtypes.GitHub}
	s3 := &recordingPublisher{typ: publishtypes.S3}

	result, err := newTestOrchestrator(Options{RepoDir: t.TempDir()}).Release(context.Background(), r, []publishers.Publisher{github, s3})
	c.Assert(err, qt.IsNil)

	for _, p := range []*recordingPublisher{github, s3} {
		c.Assert(p.requests, qt.HasLen, 1)
		req := p.requests[0]
		c.Assert(req.Tag, qt.Equals, "v1.0.0")
		c.Assert(req.Archives, qt.DeepEquals, result.Archives)
		c.Assert(req.ChecksumFile, qt.Equals, result.ChecksumFile)
	}

	_, err = os.Stat(filepath.Join(markerDir, "v1.0.0"))
	c.Assert(err, qt.IsNil)
}

func TestReleasePublishFailures(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	markerDir := t.TempDir()
	r := newTestRelease(c, "", "linux")
	r.Hooks = &config.Hooks{After: []string{fmt.Sprintf("touch %s/after", markerDir)}}

	github := &recordingPublisher{typ: publishtypes.GitHub, err: errors.New("unauthorized")}
	gitlab := &recordingPublisher{typ: publishtypes.GitLab}
	docker := &recordingPublisher{typ: publishtypes.Docker, err: errors.New("denied")}

	m := metrics.New()
	result, err := newTestOrchestrator(Options{Metrics: m, RepoDir: t.TempDir()}).Release(context.Background(), r, []publishers.Publisher{github, gitlab, docker})
	c.Assert(err, qt.ErrorMatches, "publish: github: unauthorized\npublish: docker: denied")
	c.Assert(gitlab.requests, qt.HasLen, 1)

	// The archives are kept.
	_, err = os.Stat(result.Archives[0])
	c.Assert(err, qt.IsNil)

	// The after hooks only run after a successful publish.
	_, err = os.Stat(filepath.Join(markerDir, "after"))
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestReleaseBuildFailureSkipsPublish(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	r := newTestRelease(c, "linux", "linux", "darwin")
	github := &recordingPublisher{typ: publishtypes.GitHub}

	_, err := newTestOrchestrator(Options{}).Release(context.Background(), r, []publishers.Publisher{github})
	var ferr *BuildsFailedError
	c.Assert(errors.As(err, &ferr), qt.IsTrue)
	c.Assert(github.requests, qt.HasLen, 0)
}

// resolvingPublisher maps commit authors to usernames.
type resolvingPublisher struct {
	*recordingPublisher
	usernames map[string]string
}

func (p resolvingPublisher) ResolveUsername(ctx context.Context, commit, author string) (string, error) {
	return p.usernames[author], nil
}

func TestReleaseNotesResolveUsernames(t *testing.T) {
	skipIfNoShell(t)
	c := qt.New(t)

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	c.Assert(err, qt.IsNil)
	wt, err := repo.Worktree()
	c.Assert(err, qt.IsNil)
	for i, tag := range []string{"v0.9.0", "v1.0.0"} {
		c.Assert(os.WriteFile(filepath.Join(repoDir, "f.txt"), []byte(tag), 0o644), qt.IsNil)
		_, err := wt.Add("f.txt")
		c.Assert(err, qt.IsNil)
		sig := &object.Signature{Name: "Jane", Email: "jane@example.org", When: time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC)}
		h, err := wt.Commit("feat: Release "+tag, &git.CommitOptions{Author: sig, Committer: sig})
		c.Assert(err, qt.IsNil)
		_, err = repo.CreateTag(tag, h, nil)
		c.Assert(err, qt.IsNil)
	}

	r := newTestRelease(c, "", "linux")
	github := resolvingPublisher{
		recordingPublisher: &recordingPublisher{typ: publishtypes.GitHub},
		usernames:          map[string]string{"jane@example.org": "jane"},
	}

	_, err = newTestOrchestrator(Options{RepoDir: repoDir}).Release(context.Background(), r, []publishers.Publisher{github})
	c.Assert(err, qt.IsNil)
	c.Assert(github.requests, qt.HasLen, 1)
	notes := github.requests[0].ReleaseNotes
	c.Assert(notes, qt.Contains, "feat: Release v1.0.0")
	c.Assert(notes, qt.Contains, "@jane")
	c.Assert(notes, qt.Not(qt.Contains), "feat: Release v0.9.0")
}
