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

package checksumcmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bep/logg"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rlsr/rlsr/cmd/corecmd"
	"github.com/rlsr/rlsr/internal/archives/archiveformats"
	"github.com/rlsr/rlsr/internal/checksums"
	"github.com/rlsr/rlsr/internal/checksums/checksumtypes"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/config"
)

const commandName = "checksum"

// New returns a usable ffcli.Command for the checksum subcommand.
func New(core *corecmd.Core) *ffcli.Command {
	fs := flag.NewFlagSet(corecmd.CommandName+" "+commandName, flag.ExitOnError)

	checksummer := NewChecksummer(core, fs)

	core.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       commandName,
		ShortUsage: corecmd.CommandName + " checksum [flags]",
		ShortHelp:  "Rewrite the checksum manifest for the archives in the dist folder of the selected releases.",
		FlagSet:    fs,
		Options:    corecmd.Options(),
		Exec:       checksummer.Exec,
	}
}

// NewChecksummer returns a new Checksummer.
func NewChecksummer(core *corecmd.Core, fs *flag.FlagSet) *Checksummer {
	c := &Checksummer{
		core: core,
	}
	fs.StringVar(&c.algorithm, "algorithm", "", "Checksum algorithm. Defaults to the release's checksum config, then sha256.")
	return c
}

// Checksummer recomputes checksum manifests.
type Checksummer struct {
	core    *corecmd.Core
	infoLog logg.LevelLogger

	// Flags
	algorithm string
}

func (c *Checksummer) Init() error {
	c.infoLog = c.core.InfoLog.WithField(logging.FieldCmd, commandName)
	if c.algorithm != "" {
		if _, err := checksumtypes.Parse(c.algorithm); err != nil {
			return fmt.Errorf("%s: %w", commandName, err)
		}
	}
	return nil
}

func (c *Checksummer) Exec(ctx context.Context, args []string) error {
	if err := c.Init(); err != nil {
		return err
	}

	var errs []error
	for _, r := range c.core.Releases() {
		if err := c.checksumRelease(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("release %q: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Checksummer) algorithmFor(r config.Release) checksumtypes.Algorithm {
	if c.algorithm != "" {
		return checksumtypes.MustParse(c.algorithm)
	}
	if r.Checksum != nil {
		return r.Checksum.AlgorithmParsed
	}
	return checksumtypes.SHA256
}

func (c *Checksummer) checksumRelease(ctx context.Context, r config.Release) error {
	if c.core.DistDir != "" {
		r.DistFolder = c.core.DistDir
	}

	archives, err := findArchives(r.DistFolder)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		c.core.WarnLog.WithField("release", r.Name).Log(logg.String("No archives found in " + r.DistFolder))
		return nil
	}

	cs, err := checksums.New(c.algorithmFor(r))
	if err != nil {
		return err
	}

	lines, err := checksums.CreateChecksumLines(ctx, c.core.Workforce, cs, archives...)
	if err != nil {
		return err
	}

	filename := r.ChecksumsPath()
	c.infoLog.WithField("release", r.Name).WithField("algorithm", cs.Algorithm()).Log(logg.String(fmt.Sprintf("Writing %d checksum(s) to %s", len(lines), filename)))
	if c.core.Try {
		return nil
	}

	return os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// findArchives returns the archives in dir, sorted by name.
func findArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := archiveformats.FromFilename(e.Name()); ok {
			archives = append(archives, filepath.Join(dir, e.Name()))
		}
	}
	return archives, nil
}
