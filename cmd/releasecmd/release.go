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

package releasecmd

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/bep/logg"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rlsr/rlsr/cmd/corecmd"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/publishers"
	"github.com/rlsr/rlsr/internal/releases"
)

const commandName = "release"

// New returns a usable ffcli.Command for the release subcommand.
func New(core *corecmd.Core) *ffcli.Command {
	fs := flag.NewFlagSet(corecmd.CommandName+" "+commandName, flag.ExitOnError)

	releaser := NewReleaser(core, fs)

	core.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       commandName,
		ShortUsage: corecmd.CommandName + " release [flags]",
		ShortHelp:  "Build the selected releases and publish them to their targets.",
		FlagSet:    fs,
		Options:    corecmd.Options(),
		Exec:       releaser.Exec,
	}
}

// NewReleaser returns a new Releaser.
func NewReleaser(core *corecmd.Core, fs *flag.FlagSet) *Releaser {
	r := &Releaser{
		core: core,
	}

	fs.BoolVar(&r.skipPublish, "skip-publish", false, "Build and checksum only, do not publish or run the after hooks.")

	return r
}

// Releaser builds and publishes every selected release.
type Releaser struct {
	core    *corecmd.Core
	infoLog logg.LevelLogger

	// Flags
	skipPublish bool
}

func (r *Releaser) Init() error {
	r.infoLog = r.core.InfoLog.WithField(logging.FieldCmd, commandName)
	if r.core.Meta.IsSnapshot && !r.skipPublish && !r.core.Try {
		r.core.WarnLog.WithField("tag", r.core.Meta.Tag).Log(logg.String("Publishing a snapshot"))
	}
	return nil
}

func (r *Releaser) Exec(ctx context.Context, args []string) error {
	if err := r.Init(); err != nil {
		return err
	}

	rels := r.core.Releases()
	if len(rels) == 0 {
		r.core.WarnLog.Log(logg.String("No releases matched"))
		return nil
	}

	orchestrator := r.core.NewOrchestrator(commandName)

	// Configuration and publish target errors in any release stop the run before anything is built.
	rels, err := orchestrator.PrepareAll(rels)
	if err != nil {
		return err
	}
	pubs := make([][]publishers.Publisher, len(rels))
	if !r.skipPublish {
		for i, release := range rels {
			if pubs[i], err = r.core.NewPublishers(ctx, commandName, release); err != nil {
				return fmt.Errorf("release %q: %w", release.Name, err)
			}
		}
	}

	var errs []error
	for i, release := range rels {
		var result releases.Result
		if r.skipPublish {
			result, err = orchestrator.Build(ctx, release)
		} else {
			result, err = orchestrator.Release(ctx, release, pubs[i])
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.infoLog.WithField("release", release.Name).Log(logg.String(fmt.Sprintf("Released %d archive(s)", len(result.Archives))))
	}

	return errors.Join(errs...)
}
