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

package corecmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bep/logg"
	"github.com/bep/workers"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/common/matchers"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/gitinfo"
	"github.com/rlsr/rlsr/internal/metrics"
	"github.com/rlsr/rlsr/internal/model"
	"github.com/rlsr/rlsr/internal/publishers"
	"github.com/rlsr/rlsr/internal/releases"
)

const (
	// CommandName is the main command's binary name.
	CommandName = "rlsr"

	// The prefix used for any flag overrides.
	EnvPrefix = "RLSR"

	// The env file to look for in the current directory.
	EnvFile = "rlsr.env"

	// The config file used if -config is not set.
	DefaultConfigFile = "rlsr.toml"
)

// New constructs a usable ffcli.Command and an empty Core. The Core
// will be set up after a successful parse and a call to Init.
func New() (*ffcli.Command, *Core) {
	var cfg Core

	fs := flag.NewFlagSet(CommandName, flag.ExitOnError)

	cfg.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       CommandName,
		ShortUsage: CommandName + " [flags] <subcommand> [flags] [<arg>...]",
		FlagSet:    fs,
		Options:    Options(),
		Exec:       cfg.Exec,
	}, &cfg
}

// Options returns the ff options shared by all commands.
func Options() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(EnvPrefix),
	}
}

// Core holds common config settings and objects.
type Core struct {
	// The parsed config.
	Config config.Config

	// The common loggers.
	InfoLog  logg.LevelLogger
	WarnLog  logg.LevelLogger
	ErrorLog logg.LevelLogger
	DebugLog logg.LevelLogger

	// No output to stdout.
	Quiet bool

	// Log command output.
	Debug bool

	// Trial run, no commands run, no files written and nothing published.
	Try bool

	// Force a snapshot build.
	Snapshot bool

	// The Git tag to use for the release.
	// Defaults to the latest tag in the repository. Does not need to exist.
	Tag string

	// Paths to build/release.
	Paths                 stringFlags
	PathsBuildsCompiled   matchers.Matcher
	PathsReleasesCompiled matchers.Matcher

	// Absolute path to the project root.
	ProjectDir string

	// Overrides the dist folder of every release if set.
	DistDir string

	// The config file to use.
	ConfigFile string

	// Write metrics in Prometheus text format to this file.
	MetricsFile string

	// Number of parallel builds.
	NumWorkers int

	// Global timeout for all commands.
	Timeout time.Duration

	// Identifies this run in the logs.
	RunID string

	// The git state of the project.
	Git gitinfo.Info

	// The run wide template data.
	Meta model.TemplateMeta

	// The global workforce.
	Workforce *workers.Workforce

	// Nil if MetricsFile is not set.
	Metrics *metrics.Metrics

	// Used in tests.
	Stdout io.Writer
	Stderr io.Writer
}

// Exec function for this command.
func (c *Core) Exec(context.Context, []string) error {
	// The root command has no meaning, so if it gets executed,
	// display the usage text to the user instead.
	return flag.ErrHelp
}

// RegisterFlags registers the flag fields into the provided flag.FlagSet. This
// helper function allows subcommands to register the root flags into their
// flagsets, creating "global" flags that can be passed after any subcommand at
// the commandline.
func (c *Core) RegisterFlags(fs *flag.FlagSet) {
	numWorkers := runtime.NumCPU()
	if numWorkers > 6 {
		numWorkers = 6
	}
	fs.StringVar(&c.Tag, "tag", "", "The name of the release tag (e.g. v1.2.0). Defaults to the latest tag. Does not need to exist.")
	fs.Var(&c.Paths, "paths", "Paths to include in the command, e.g. releases/main or builds/linux*. Can be repeated.")
	fs.StringVar(&c.DistDir, "dist", "", "Directory to store the archives in. Overrides the dist_folder of all releases.")
	fs.StringVar(&c.ConfigFile, "config", DefaultConfigFile, "The config file to use (.toml, .yaml or .yml).")
	fs.StringVar(&c.MetricsFile, "metrics-file", "", "Write build metrics in Prometheus text format to this file.")
	fs.IntVar(&c.NumWorkers, "workers", numWorkers, "Number of parallel builds.")
	fs.DurationVar(&c.Timeout, "timeout", 55*time.Minute, "Global timeout.")
	fs.BoolVar(&c.Quiet, "quiet", false, "Don't output anything to stdout.")
	fs.BoolVar(&c.Debug, "debug", false, "Log the output of all commands.")
	fs.BoolVar(&c.Try, "try", false, "Trial run, no builds, archives or releases.")
	fs.BoolVar(&c.Snapshot, "snapshot", false, "Mark the release as a snapshot.")
}

// PreInit is called before the flags are parsed.
func (c *Core) PreInit() error {
	// We need to do this as early as possible (before the flags and config is parsed).
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("error getting working directory: %w", err)
	}

	c.ProjectDir = wd

	// Note that OS env will override the env file.
	if env, err := config.LoadEnvFile(filepath.Join(c.ProjectDir, EnvFile)); err == nil {
		for k, v := range env {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	return nil
}

func (c *Core) compilePaths() error {
	// First check if it should match everything (default).
	shouldMatchEverything := true
	for _, p := range c.Paths {
		if strings.HasPrefix(p, "/") {
			return fmt.Errorf("paths must not start with /: %s", p)
		}
		if p != "**" {
			shouldMatchEverything = false
			break
		}
	}
	if shouldMatchEverything {
		c.PathsBuildsCompiled = matchers.MatchEverything
		c.PathsReleasesCompiled = matchers.MatchEverything
		return nil
	}

	const (
		buildsPrefix   = "builds/"
		releasesPrefix = "releases/"
	)

	compilePrefix := func(target *matchers.Matcher, p, prefix string) error {
		if !strings.HasPrefix(p, prefix) {
			return nil
		}
		p = p[len(prefix):]
		pc, err := matchers.Glob(p)
		if err != nil {
			return fmt.Errorf("error compiling path %q: %w", p, err)
		}
		if *target == nil {
			*target = pc
		} else {
			*target = matchers.Or(*target, pc)
		}
		return nil
	}

	// Specific paths needs to start with either builds/ or releases/.
	for _, p := range c.Paths {
		if !strings.HasPrefix(p, buildsPrefix) && !strings.HasPrefix(p, releasesPrefix) {
			return fmt.Errorf("path %q must start with builds/ or releases/", p)
		}
		if err := compilePrefix(&c.PathsBuildsCompiled, p, buildsPrefix); err != nil {
			return err
		}
		if err := compilePrefix(&c.PathsReleasesCompiled, p, releasesPrefix); err != nil {
			return err
		}
	}

	if c.PathsBuildsCompiled == nil {
		c.PathsBuildsCompiled = matchers.MatchEverything
	}
	if c.PathsReleasesCompiled == nil {
		c.PathsReleasesCompiled = matchers.MatchEverything
	}

	return nil
}

// Init sets up logging, reads the config and the git state.
// It must be called after the flags are parsed.
func (c *Core) Init() error {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.ProjectDir == "" {
		if err := c.PreInit(); err != nil {
			return err
		}
	}

	c.RunID = uuid.NewString()

	if c.DistDir != "" && !filepath.IsAbs(c.DistDir) {
		c.DistDir = filepath.Join(c.ProjectDir, c.DistDir)
	}

	c.initLogging()

	c.DebugLog.WithField("run", c.RunID).Log(logg.String("Starting"))

	if err := c.compilePaths(); err != nil {
		return fmt.Errorf("error compiling -paths: %w", err)
	}

	if c.NumWorkers < 1 {
		c.NumWorkers = runtime.NumCPU()
	}
	c.Workforce = workers.New(c.NumWorkers)

	if c.MetricsFile != "" {
		c.Metrics = metrics.New()
	}

	if err := c.loadConfig(); err != nil {
		return err
	}

	var err error
	c.Git, err = gitinfo.Read(c.ProjectDir, c.Tag)
	if err != nil {
		return fmt.Errorf("error reading git info: %w", err)
	}

	c.Meta = c.Git.Meta(gitinfo.MetaOptions{
		ProjectName: c.Config.Project,
		Snapshot:    c.Snapshot,
		Env:         model.EnvMap(),
		Now:         time.Now(),
	})

	c.InfoLog.WithField("tag", c.Meta.Tag).WithField("commit", c.Meta.ShortCommit).WithField("snapshot", c.Meta.IsSnapshot).Log(logg.String("Project " + c.Config.Project))

	return nil
}

func (c *Core) initLogging() {
	stdOut := c.Stdout
	if c.Quiet {
		stdOut = io.Discard
	}

	level := logg.LevelInfo
	if c.Debug {
		level = logg.LevelDebug
	}

	opts := logging.Options{
		Stdout:  stdOut,
		Stderr:  c.Stderr,
		Level:   level,
		Colours: c.Stdout == os.Stdout && logging.IsTerminal(os.Stdout),
	}

	if c.DistDir != "" {
		// Replace the dist dir (usually long path) in the log messages with a shorter version.
		opts.Replacer = strings.NewReplacer(c.DistDir, "$DIST")
	}

	l := logging.New(opts)

	c.InfoLog = l.WithLevel(logg.LevelInfo).WithField(logging.FieldCmd, "core")
	c.WarnLog = l.WithLevel(logg.LevelWarn).WithField(logging.FieldCmd, "core")
	c.ErrorLog = l.WithLevel(logg.LevelError).WithField(logging.FieldCmd, "core")
	c.DebugLog = l.WithLevel(logg.LevelDebug).WithField(logging.FieldCmd, "core")
}

func (c *Core) loadConfig() error {
	if !filepath.IsAbs(c.ConfigFile) {
		c.ConfigFile = filepath.Join(c.ProjectDir, c.ConfigFile)
	}

	if filepath.Base(c.ConfigFile) == DefaultConfigFile {
		if _, err := os.Stat(c.ConfigFile); os.IsNotExist(err) {
			for _, ext := range []string{".yaml", ".yml"} {
				alt := strings.TrimSuffix(c.ConfigFile, ".toml") + ext
				if _, err := os.Stat(alt); err == nil {
					c.ConfigFile = alt
					break
				}
			}
		}
	}

	var err error
	c.Config, err = config.DecodeFile(c.ConfigFile)
	if err != nil {
		msg := "error decoding config file"
		var (
			decodeErr  *toml.DecodeError
			missingErr *toml.StrictMissingError
		)
		switch {
		case errors.As(err, &decodeErr):
			line, col := decodeErr.Position()
			return fmt.Errorf("%s %q:%d:%d %w:\n%s", msg, c.ConfigFile, line, col, err, decodeErr.String())
		case errors.As(err, &missingErr):
			return fmt.Errorf("%s %q: %w:\n%s", msg, c.ConfigFile, err, missingErr.String())
		}
		return fmt.Errorf("%s %q: %w", msg, c.ConfigFile, err)
	}

	return nil
}

// Releases returns the releases selected by -paths.
func (c *Core) Releases() []config.Release {
	return c.Config.FindReleases(c.PathsReleasesCompiled)
}

// NewOrchestrator creates a release orchestrator logging to the given sub command.
func (c *Core) NewOrchestrator(cmd string) *releases.Orchestrator {
	return releases.New(releases.Options{
		InfoLog:     c.InfoLog.WithField(logging.FieldCmd, cmd),
		WarnLog:     c.WarnLog.WithField(logging.FieldCmd, cmd),
		DebugLog:    c.DebugLog.WithField(logging.FieldCmd, cmd),
		Meta:        c.Meta,
		Workforce:   c.Workforce,
		BuildFilter: c.PathsBuildsCompiled,
		DistDir:     c.DistDir,
		Metrics:     c.Metrics,
		Try:         c.Try,
		Changelog:   c.Config.Changelog,
		RepoDir:     c.ProjectDir,
	})
}

// NewPublishers creates the publishers for the targets of r.
func (c *Core) NewPublishers(ctx context.Context, cmd string, r config.Release) ([]publishers.Publisher, error) {
	return publishers.New(ctx, r.Targets, publishers.Options{
		InfoLog:   c.InfoLog.WithField(logging.FieldCmd, cmd),
		Workforce: c.Workforce,
		Try:       c.Try,
	})
}

// Close writes the metrics file, if configured.
func (c *Core) Close() error {
	if c.Metrics == nil {
		return nil
	}
	if err := c.Metrics.WriteFile(c.MetricsFile); err != nil {
		return fmt.Errorf("error writing metrics file: %w", err)
	}
	return nil
}

type stringFlags []string

func (s *stringFlags) String() string {
	return strings.Join(*s, "  ")
}

func (s *stringFlags) Set(value string) error {
	*s = append(*s, value)
	return nil
}
