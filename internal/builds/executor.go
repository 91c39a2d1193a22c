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

// Package builds runs a single expanded build from hooks to archive.
package builds

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bep/logg"
	"github.com/rlsr/rlsr/internal/archives"
	"github.com/rlsr/rlsr/internal/archives/deb"
	"github.com/rlsr/rlsr/internal/builds/buildtypes"
	"github.com/rlsr/rlsr/internal/common/ioh"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/common/templ"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/model"
)

// Build stages, used in ExecError.
const (
	StagePreHook  = "prehook"
	StageBuild    = "build"
	StagePostHook = "posthook"
	StageArtifact = "artifact"
)

// ExecError is returned when a stage of a build fails.
type ExecError struct {
	// The rendered build name.
	Build string

	Stage string

	// The failing command, if any.
	Command string

	// Combined command output.
	Output string

	Err error
}

func (e *ExecError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s failed: %s", e.Stage, e.Build)
	if e.Command != "" {
		fmt.Fprintf(&sb, ": %q", e.Command)
	}
	fmt.Fprintf(&sb, ": %v", e.Err)
	if tail := outputTail(e.Output); tail != "" {
		fmt.Fprintf(&sb, ": output: %q", tail)
	}
	return sb.String()
}

// Limits for the command output included in ExecError.Error.
const (
	maxOutputTailLines = 5
	maxOutputTailBytes = 512
)

// outputTail returns the last lines of the trimmed command output s.
func outputTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxOutputTailLines {
		lines = lines[len(lines)-maxOutputTailLines:]
	}
	s = strings.Join(lines, "\n")
	if len(s) > maxOutputTailBytes {
		i := len(s) - maxOutputTailBytes
		for i < len(s) && !utf8.RuneStart(s[i]) {
			i++
		}
		s = "..." + s[i:]
	}
	return s
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Result is what a successful build produced.
type Result struct {
	// The rendered build name.
	Name string

	// The archive, or the renamed artifact with no_archive set.
	// Empty if the build has no artifact.
	ArchivePath string

	// The buildx image tags built.
	ImageTags []string
}

// Options configures an Executor.
type Options struct {
	// Info and debug loggers. Command output is logged to DebugLog.
	InfoLog  logg.LevelLogger
	DebugLog logg.LevelLogger

	// Meta is the run wide template data.
	Meta model.TemplateMeta

	// Runner runs external commands.
	// Defaults to a runner that executes the commands.
	Runner CommandRunner

	// Try logs the commands without running them and writes no files.
	Try bool
}

// Executor runs builds.
// It is safe for concurrent use.
type Executor struct {
	opts Options
}

func NewExecutor(opts Options) *Executor {
	if opts.InfoLog == nil || opts.DebugLog == nil {
		l := logging.Discard()
		if opts.InfoLog == nil {
			opts.InfoLog = l.WithLevel(logg.LevelInfo)
		}
		if opts.DebugLog == nil {
			opts.DebugLog = l.WithLevel(logg.LevelDebug)
		}
	}
	if opts.Runner == nil {
		opts.Runner = NewCommandRunner(opts.DebugLog)
	}
	return &Executor{opts: opts}
}

// Run runs the expanded build b of release r.
// Stages: render meta, prehook, build command, posthook, then artifact copy and archive.
func (e *Executor) Run(ctx context.Context, r config.Release, b config.Build) (Result, error) {
	var result Result

	meta, err := e.buildMeta(b)
	if err != nil {
		return result, &ExecError{Build: b.Name, Stage: StageBuild, Err: err}
	}
	result.Name = meta.BuildName
	tctx := model.NewTemplateContext(meta)

	infoLog := e.opts.InfoLog.WithField(logging.FieldBuild, meta.BuildName)
	debugLog := e.opts.DebugLog.WithField(logging.FieldBuild, meta.BuildName)
	runner := e.opts.Runner
	if _, ok := runner.(*execRunner); ok {
		runner = NewCommandRunner(debugLog)
	}

	fail := func(stage, command, output string, err error) (Result, error) {
		return result, &ExecError{Build: meta.BuildName, Stage: stage, Command: command, Output: output, Err: err}
	}

	envList, err := templ.SprinttAll(append(append([]string{}, r.Env...), b.Env...), tctx)
	if err != nil {
		return fail(StageBuild, "", "", err)
	}
	env := Environ(envList...)

	runHook := func(stage, hook string) error {
		script, err := templ.Sprintt(hook, tctx)
		if err != nil {
			_, err = fail(stage, hook, "", err)
			return err
		}
		infoLog.WithField("command", script).Log(logg.String("Running " + stage))
		if e.opts.Try {
			return nil
		}
		name, args := ShellCommand(script)
		if out, err := runner.RunCommand(ctx, env, name, args...); err != nil {
			_, err = fail(stage, script, out, err)
			return err
		}
		return nil
	}

	if b.PreHook != "" {
		if err := runHook(StagePreHook, b.PreHook); err != nil {
			return result, err
		}
	}

	switch b.TypeParsed {
	case buildtypes.Buildx:
		if b.Buildx == nil {
			return fail(StageBuild, "", "", fmt.Errorf("buildx build has no buildx config"))
		}
		bx, err := RenderBuildx(*b.Buildx, tctx)
		if err != nil {
			return fail(StageBuild, "", "", err)
		}
		args, err := BuildxArgs(bx)
		if err != nil {
			return fail(StageBuild, "", "", err)
		}
		command := "docker " + strings.Join(args, " ")
		infoLog.WithField("command", command).Log(logg.String("Building image"))
		if !e.opts.Try {
			if bx.Builder != "" {
				if err := EnsureBuilder(ctx, runner, env, bx.Builder); err != nil {
					return fail(StageBuild, command, "", err)
				}
			}
			if out, err := runner.RunCommand(ctx, env, "docker", args...); err != nil {
				return fail(StageBuild, command, out, err)
			}
		}
		result.ImageTags = bx.Tags
	default:
		script, err := templ.Sprintt(b.Command, tctx)
		if err != nil {
			return fail(StageBuild, "", "", err)
		}
		infoLog.WithField("command", script).Log(logg.String("Building"))
		if !e.opts.Try {
			name, args := ShellCommand(script)
			if out, err := runner.RunCommand(ctx, env, name, args...); err != nil {
				return fail(StageBuild, script, out, err)
			}
		}
	}

	if b.PostHook != "" {
		if err := runHook(StagePostHook, b.PostHook); err != nil {
			return result, err
		}
	}

	if b.Artifact == "" {
		return result, nil
	}

	archivePath, err := e.processArtifact(r, b, meta, tctx, infoLog)
	if err != nil {
		return fail(StageArtifact, "", "", err)
	}
	result.ArchivePath = archivePath

	return result, nil
}

// Check renders every template of the expanded build b of release r and validates
// the rendered buildx settings, without running anything.
// It returns the rendered build name.
func (e *Executor) Check(r config.Release, b config.Build) (string, error) {
	meta, err := e.buildMeta(b)
	if err != nil {
		return b.Name, err
	}
	tctx := model.NewTemplateContext(meta)

	for _, list := range [][]string{r.Env, b.Env, b.AdditionalFiles, r.AdditionalFiles} {
		if _, err := templ.SprinttAll(list, tctx); err != nil {
			return meta.BuildName, err
		}
	}
	if _, err := templ.SprinttAll([]string{b.PreHook, b.Command, b.PostHook, b.Artifact, b.ArchiveName, b.BinName}, tctx); err != nil {
		return meta.BuildName, err
	}

	if b.TypeParsed == buildtypes.Buildx {
		if b.Buildx == nil {
			return meta.BuildName, fmt.Errorf("buildx build has no buildx config")
		}
		bx, err := RenderBuildx(*b.Buildx, tctx)
		if err != nil {
			return meta.BuildName, err
		}
		if _, err := BuildxArgs(bx); err != nil {
			return meta.BuildName, err
		}
	}

	return meta.BuildName, nil
}

// BuildName returns the rendered name of b.
func (e *Executor) BuildName(b config.Build) (string, error) {
	meta, err := e.buildMeta(b)
	return meta.BuildName, err
}

// buildMeta returns the template data for b.
// The build name is rendered against the build itself first.
func (e *Executor) buildMeta(b config.Build) (model.BuildMeta, error) {
	meta := e.opts.Meta.ForBuild()
	meta.BuildName = b.Name
	meta.Os = b.Os
	meta.Arch = b.Arch
	meta.Arm = b.Arm
	meta.Target = b.Target
	if meta.Target == "" && b.Buildx != nil {
		meta.Target = b.Buildx.Target
	}
	if b.MatrixValues != nil {
		meta.Matrix = b.MatrixValues
	}

	name, err := templ.Sprintt(b.Name, model.NewTemplateContext(meta))
	if err != nil {
		return meta, err
	}
	meta.BuildName = name

	return meta, nil
}

func (e *Executor) processArtifact(r config.Release, b config.Build, meta model.BuildMeta, tctx model.TemplateContext, infoLog logg.LevelLogger) (string, error) {
	artifact, err := templ.Sprintt(b.Artifact, tctx)
	if err != nil {
		return "", err
	}
	archiveName, err := templ.Sprintt(b.ArchiveName, tctx)
	if err != nil {
		return "", err
	}
	binName := archiveName
	if b.BinName != "" {
		if binName, err = templ.Sprintt(b.BinName, tctx); err != nil {
			return "", err
		}
	}

	distDir := r.DistFolder
	binPath := filepath.Join(distDir, binName)

	infoLog.WithField("artifact", artifact).Log(logg.String("Copying artifact to " + binPath))
	if !e.opts.Try {
		if err := ioh.CopyFile(artifact, binPath); err != nil {
			return "", err
		}
	}

	if b.NoArchive {
		if binName == archiveName {
			return binPath, nil
		}
		return archives.Copy(binPath, distDir, archiveName, e.opts.Try)
	}

	files := []archives.File{{Path: binPath, Name: filepath.Base(artifact)}}
	for _, additional := range [][]string{b.AdditionalFiles, r.AdditionalFiles} {
		rendered, err := templ.SprinttAll(additional, tctx)
		if err != nil {
			return "", err
		}
		for _, f := range rendered {
			files = append(files, archives.File{Path: f, Name: filepath.Base(f)})
		}
	}
	files = archives.SortAndDedupe(files)

	settings := archives.Settings{
		Format: b.ArchiveFormatParsed,
		Deb: deb.Options{
			Name:    binName,
			Version: meta.Tag,
			Arch:    meta.Arch,
			Meta:    b.ArchiveMeta,
		},
	}

	filename, err := archives.Build(files, distDir, archiveName, settings, e.opts.Try)
	if err != nil {
		return "", err
	}
	infoLog.WithField("archive", filename).Log(logg.String("Archived"))

	return filename, nil
}
