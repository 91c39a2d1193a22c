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

package buildcmd

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/bep/logg"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rlsr/rlsr/cmd/corecmd"
	"github.com/rlsr/rlsr/internal/common/logging"
)

const commandName = "build"

// New returns a usable ffcli.Command for the build subcommand.
func New(core *corecmd.Core) *ffcli.Command {
	builder := &Builder{
		core: core,
	}

	fs := flag.NewFlagSet(corecmd.CommandName+" "+commandName, flag.ExitOnError)

	core.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       commandName,
		ShortUsage: corecmd.CommandName + " build [flags]",
		ShortHelp:  "Run the builds of the selected releases and write the archives and checksums.",
		FlagSet:    fs,
		Options:    corecmd.Options(),
		Exec:       builder.Exec,
	}
}

// Builder runs the builds of every selected release without publishing.
type Builder struct {
	core    *corecmd.Core
	infoLog logg.LevelLogger
}

func (b *Builder) Init() error {
	b.infoLog = b.core.InfoLog.WithField(logging.FieldCmd, commandName)
	return nil
}

func (b *Builder) Exec(ctx context.Context, args []string) error {
	if err := b.Init(); err != nil {
		return err
	}

	releases := b.core.Releases()
	if len(releases) == 0 {
		b.core.WarnLog.Log(logg.String("No releases matched"))
		return nil
	}

	orchestrator := b.core.NewOrchestrator(commandName)

	// Configuration errors in any release stop the run before anything is built.
	releases, err := orchestrator.PrepareAll(releases)
	if err != nil {
		return err
	}

	// Releases are independent, a failing release does not stop the next.
	var errs []error
	for _, r := range releases {
		result, err := orchestrator.Build(ctx, r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.infoLog.WithField("release", r.Name).Log(logg.String(fmt.Sprintf("Built %d archive(s)", len(result.Archives))))
	}

	return errors.Join(errs...)
}
