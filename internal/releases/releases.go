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

// Package releases runs all builds of a release and hands the result to the publishers.
package releases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/logg"
	"github.com/bep/workers"
	"github.com/rlsr/rlsr/internal/builds"
	"github.com/rlsr/rlsr/internal/builds/matrix"
	"github.com/rlsr/rlsr/internal/checksums"
	"github.com/rlsr/rlsr/internal/common/errorsh"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/common/matchers"
	"github.com/rlsr/rlsr/internal/common/templ"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/metrics"
	"github.com/rlsr/rlsr/internal/model"
	"github.com/rlsr/rlsr/internal/publishers"
	"github.com/rlsr/rlsr/internal/releases/changelog"
)

// Release hook stages, used in builds.ExecError.
const (
	StageBeforeHook = "before hook"
	StageAfterHook  = "after hook"
)

// Options configures an Orchestrator.
type Options struct {
	InfoLog  logg.LevelLogger
	WarnLog  logg.LevelLogger
	DebugLog logg.LevelLogger

	// Meta is the run wide template data.
	Meta model.TemplateMeta

	// Bounds the number of builds running at once when not sequential.
	Workforce *workers.Workforce

	// Selects builds by their rendered name. Nil selects all.
	BuildFilter matchers.Matcher

	// Overrides the dist folder of every release if set.
	DistDir string

	// Runs the hooks and build commands.
	Runner builds.CommandRunner

	// Can be nil.
	Metrics *metrics.Metrics

	// Trial run, no commands run and no files written.
	Try bool

	// Release notes settings.
	Changelog config.Changelog
	RepoDir   string
}

// Result is what a release produced.
type Result struct {
	// Archive paths in completion order.
	Archives []string

	// Image tags of the buildx builds in completion order.
	ImageTags []string

	// Path to the checksum manifest, empty if not configured.
	ChecksumFile string
}

// BuildFailure is the failure of one build.
type BuildFailure struct {
	// The rendered build name.
	Build string
	Err   error

	// Position in the expanded build list.
	index int
}

func (f *BuildFailure) Error() string {
	return fmt.Sprintf("build %q: %v", f.Build, f.Err)
}

func (f *BuildFailure) Unwrap() error {
	return f.Err
}

// BuildsFailedError is returned when one or more builds of a release failed.
// The remaining builds were run to completion.
type BuildsFailedError struct {
	Release string

	// The number of builds run.
	Total int

	// Ordered as the builds were expanded.
	Failures []*BuildFailure
}

func (e *BuildsFailedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "release %q: %d of %d builds failed:", e.Release, len(e.Failures), e.Total)
	for _, f := range e.Failures {
		sb.WriteString("\n\t")
		sb.WriteString(f.Error())
	}
	return sb.String()
}

func (e *BuildsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Orchestrator runs releases.
type Orchestrator struct {
	opts     Options
	executor *builds.Executor
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	l := logging.Discard()
	if opts.InfoLog == nil {
		opts.InfoLog = l.WithLevel(logg.LevelInfo)
	}
	if opts.WarnLog == nil {
		opts.WarnLog = l.WithLevel(logg.LevelWarn)
	}
	if opts.DebugLog == nil {
		opts.DebugLog = l.WithLevel(logg.LevelDebug)
	}
	if opts.Workforce == nil {
		opts.Workforce = workers.New(1)
	}
	if opts.Runner == nil {
		opts.Runner = builds.NewCommandRunner(opts.DebugLog)
	}

	return &Orchestrator{
		opts: opts,
		executor: builds.NewExecutor(builds.Options{
			InfoLog:  opts.InfoLog,
			DebugLog: opts.DebugLog,
			Meta:     opts.Meta,
			Runner:   opts.Runner,
			Try:      opts.Try,
		}),
	}
}

// Prepare expands the builds of r and renders every build and hook template
// without running anything, so configuration errors surface before any hook or build runs.
// The returned release holds the expanded builds selected by the build filter.
// Preparing a prepared release is a no-op.
func (o *Orchestrator) Prepare(r config.Release) (config.Release, error) {
	if r.Prepared {
		return r, nil
	}
	if o.opts.DistDir != "" {
		r.DistFolder = o.opts.DistDir
	}
	what := fmt.Sprintf("releases: %q", r.Name)

	if r.Hooks != nil {
		tctx := o.hookContext()
		for _, hooks := range [][]string{r.Env, r.Hooks.Before, r.Hooks.After} {
			if _, err := templ.SprinttAll(hooks, tctx); err != nil {
				return r, model.NewConfigError(what+": hooks", err)
			}
		}
	}

	expanded, err := matrix.Expand(r.Builds)
	if err != nil {
		return r, fmt.Errorf("%s: %w", what, err)
	}

	selected := make([]config.Build, 0, len(expanded))
	for _, b := range expanded {
		name, err := o.executor.Check(r, b)
		if err != nil {
			return r, model.NewConfigError(fmt.Sprintf("%s: builds: %q", what, name), err)
		}
		if o.opts.BuildFilter != nil && !o.opts.BuildFilter.Match(name) {
			continue
		}
		selected = append(selected, b)
	}

	r.Expanded = selected
	r.Prepared = true

	return r, nil
}

// PrepareAll prepares all of rs, failing on the first invalid release.
func (o *Orchestrator) PrepareAll(rs []config.Release) ([]config.Release, error) {
	prepared := make([]config.Release, len(rs))
	for i, r := range rs {
		var err error
		if prepared[i], err = o.Prepare(r); err != nil {
			return nil, err
		}
	}
	return prepared, nil
}

// Build runs the before hooks and all builds of r, then writes the checksum manifest.
// r is prepared first if needed.
// A failing build does not stop the others; all failures are returned
// in a *BuildsFailedError once every build has finished.
func (o *Orchestrator) Build(ctx context.Context, r config.Release) (Result, error) {
	r, err := o.Prepare(r)
	if err != nil {
		return Result{}, err
	}
	infoLog := o.opts.InfoLog.WithField("release", r.Name)

	selected := r.Expanded
	if len(selected) == 0 {
		o.opts.WarnLog.WithField("release", r.Name).Log(logg.String("No builds matched"))
		return Result{}, nil
	}
	names := make([]string, len(selected))
	for i, b := range selected {
		if names[i], err = o.executor.BuildName(b); err != nil {
			return Result{}, err
		}
	}

	if r.Hooks != nil {
		if err := o.runHooks(ctx, r, StageBeforeHook, r.Hooks.Before); err != nil {
			return Result{}, err
		}
	}

	if !o.opts.Try {
		if err := os.MkdirAll(r.DistFolder, 0o755); err != nil {
			return Result{}, err
		}
	}

	c := &collector{}

	runBuild := func(i int) {
		start := time.Now()
		err := errorsh.Recover(func() error {
			result, err := o.executor.Run(ctx, r, selected[i])
			if err != nil {
				return err
			}
			if result.ArchivePath != "" && !o.opts.Try {
				if err := o.opts.Metrics.AddArchive(r.Name, result.ArchivePath); err != nil {
					return err
				}
			}
			c.addResult(result)
			return nil
		})
		o.opts.Metrics.ObserveBuild(r.Name, time.Since(start), err)
		if err != nil {
			c.addFailure(&BuildFailure{Build: names[i], Err: err, index: i})
		}
	}

	infoLog.WithField("builds", len(selected)).WithField("sequential", r.Sequential).Log(logg.String("Starting builds"))

	if r.Sequential {
		for i := range selected {
			runBuild(i)
		}
	} else {
		// Tasks always return nil so a failing build never cancels its siblings.
		runner, _ := o.opts.Workforce.Start(ctx)
		for i := range selected {
			i := i
			runner.Run(func() error {
				runBuild(i)
				return nil
			})
		}
		if err := runner.Wait(); err != nil {
			return Result{}, err
		}
	}

	result := Result{
		Archives:  c.archives,
		ImageTags: c.imageTags,
	}

	if len(c.failures) > 0 {
		sort.Slice(c.failures, func(i, j int) bool {
			return c.failures[i].index < c.failures[j].index
		})
		return result, &BuildsFailedError{Release: r.Name, Total: len(selected), Failures: c.failures}
	}

	if r.Checksum != nil && len(result.Archives) > 0 {
		result.ChecksumFile = r.ChecksumsPath()
		infoLog.WithField("file", result.ChecksumFile).Log(logg.String("Writing checksums"))
		if !o.opts.Try {
			cs, err := checksums.New(r.Checksum.AlgorithmParsed)
			if err != nil {
				return result, err
			}
			if err := checksums.WriteManifest(cs, result.ChecksumFile, result.Archives); err != nil {
				return result, fmt.Errorf("release %q: %w", r.Name, err)
			}
		}
	}

	return result, nil
}

// Release builds r and publishes the result to pubs, then runs the after hooks.
// Publish failures are returned joined, one per failed target, and skip the after hooks.
func (o *Orchestrator) Release(ctx context.Context, r config.Release, pubs []publishers.Publisher) (Result, error) {
	r, err := o.Prepare(r)
	if err != nil {
		return Result{}, err
	}
	result, err := o.Build(ctx, r)
	if err != nil {
		return result, err
	}

	req := publishers.Request{
		Release:      r,
		Archives:     result.Archives,
		ChecksumFile: result.ChecksumFile,
		ImageTags:    result.ImageTags,
		Tag:          o.opts.Meta.Tag,
		Meta:         o.opts.Meta,
		ReleaseNotes: o.releaseNotes(ctx, publishers.FindAuthorResolver(pubs)),
	}

	var errs []error
	for _, p := range pubs {
		err := publishers.Publish(ctx, []publishers.Publisher{p}, req)
		o.opts.Metrics.ObservePublish(p.Type().String(), err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return result, err
	}

	if r.Hooks != nil {
		if err := o.runHooks(ctx, r, StageAfterHook, r.Hooks.After); err != nil {
			return result, err
		}
	}

	return result, nil
}

// releaseNotes renders the changes since the previous tag.
// Authors are resolved to usernames with resolver if set.
// Release notes are optional, failures are logged and give empty notes.
func (o *Orchestrator) releaseNotes(ctx context.Context, resolver publishers.AuthorResolver) string {
	meta := o.opts.Meta
	opts := changelog.Options{
		Exclude:  o.opts.Changelog.ExcludeCompiled,
		PrevTag:  meta.PreviousTag,
		Tag:      meta.Tag,
		RepoPath: o.opts.RepoDir,
	}
	if resolver != nil {
		opts.ResolveUserName = func(commit, author string) (string, error) {
			return resolver.ResolveUsername(ctx, commit, author)
		}
	}
	changes, err := changelog.CollectChanges(opts)
	if err != nil {
		o.opts.WarnLog.Log(logg.String(fmt.Sprintf("Skipping release notes: %v", err)))
		return ""
	}
	var buf bytes.Buffer
	if err := changelog.RenderReleaseNotes(&buf, o.opts.Changelog.Template, meta, changes); err != nil {
		o.opts.WarnLog.Log(logg.String(fmt.Sprintf("Skipping release notes: %v", err)))
		return ""
	}
	return buf.String()
}

func (o *Orchestrator) hookContext() model.TemplateContext {
	return model.NewTemplateContext(o.opts.Meta.ForBuild())
}

func (o *Orchestrator) runHooks(ctx context.Context, r config.Release, stage string, hooks []string) error {
	if len(hooks) == 0 {
		return nil
	}
	tctx := o.hookContext()
	envList, err := templ.SprinttAll(r.Env, tctx)
	if err != nil {
		return &builds.ExecError{Build: r.Name, Stage: stage, Err: err}
	}
	env := builds.Environ(envList...)
	infoLog := o.opts.InfoLog.WithField("release", r.Name)

	for _, hook := range hooks {
		script, err := templ.Sprintt(hook, tctx)
		if err != nil {
			return &builds.ExecError{Build: r.Name, Stage: stage, Command: hook, Err: err}
		}
		infoLog.WithField("command", script).Log(logg.String("Running " + stage))
		if o.opts.Try {
			continue
		}
		name, args := builds.ShellCommand(script)
		if out, err := o.opts.Runner.RunCommand(ctx, env, name, args...); err != nil {
			return &builds.ExecError{Build: r.Name, Stage: stage, Command: script, Output: out, Err: err}
		}
	}

	return nil
}

// collector holds the results of the builds of one release.
// The lists are append only.
type collector struct {
	mu        sync.Mutex
	archives  []string
	imageTags []string
	failures  []*BuildFailure
}

func (c *collector) addResult(r builds.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.ArchivePath != "" {
		c.archives = append(c.archives, r.ArchivePath)
	}
	c.imageTags = append(c.imageTags, r.ImageTags...)
}

func (c *collector) addFailure(f *BuildFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}
