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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/bep/logg"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rlsr/rlsr/cmd/buildcmd"
	"github.com/rlsr/rlsr/cmd/checksumcmd"
	"github.com/rlsr/rlsr/cmd/corecmd"
	"github.com/rlsr/rlsr/cmd/releasecmd"
	"github.com/rlsr/rlsr/internal/common/errorsh"
	"github.com/rlsr/rlsr/internal/common/logging"
)

func main() {
	log.SetFlags(0)
	if err := parseAndRun(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func parseAndRun(args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Println("stacktrace from panic: \n" + string(debug.Stack()))
			err = fmt.Errorf("%v", r)
		}
	}()

	start := time.Now()

	var (
		coreCommand, core = corecmd.New()
		buildCommand      = buildcmd.New(core)
		releaseCommand    = releasecmd.New(core)
		checksumCommand   = checksumcmd.New(core)
	)

	coreCommand.Subcommands = []*ffcli.Command{
		buildCommand,
		releaseCommand,
		checksumCommand,
	}

	if err := core.PreInit(); err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if err := coreCommand.Parse(args); err != nil {
		return fmt.Errorf("error parsing command line: %w", err)
	}

	if err := core.Init(); err != nil {
		return fmt.Errorf("error initializing config: %w", err)
	}

	defer func() {
		if cerr := core.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing app: %w", cerr)
		}

		elapsed := time.Since(start)
		core.InfoLog.Log(logg.String(fmt.Sprintf("Total in %s …", logging.FormatBuildDuration(elapsed))))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), core.Timeout)
	defer cancel()

	if err := coreCommand.Run(ctx); err != nil {
		if errorsh.IsShutdownError(err) && ctx.Err() != nil {
			return fmt.Errorf("timed out after %s: %w", core.Timeout, err)
		}
		return fmt.Errorf("error running command: %w", err)
	}

	return
}
