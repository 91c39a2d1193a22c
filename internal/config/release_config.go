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

package config

import (
	"fmt"
	"path/filepath"

	"github.com/rlsr/rlsr/internal/checksums/checksumtypes"
	"github.com/rlsr/rlsr/internal/model"
)

var (
	_ model.Initializer = (*Release)(nil)
	_ model.Initializer = (*Checksum)(nil)
)

// ChecksumsFilename is the name of the checksum manifest in the dist folder.
const ChecksumsFilename = "checksums.txt"

type Release struct {
	Name       string `toml:"name" yaml:"name"`
	DistFolder string `toml:"dist_folder" yaml:"dist_folder"`

	Builds        []Build `toml:"builds" yaml:"builds"`
	BuildDefaults Build   `toml:"build_defaults" yaml:"build_defaults"`

	Targets  Targets   `toml:"targets" yaml:"targets"`
	Checksum *Checksum `toml:"checksum" yaml:"checksum"`

	Env             []string `toml:"env" yaml:"env"`
	AdditionalFiles []string `toml:"additional_files" yaml:"additional_files"`
	Hooks           *Hooks   `toml:"hooks" yaml:"hooks"`

	// Run the builds one at a time in the order given.
	Sequential bool `toml:"sequential" yaml:"sequential"`

	// The expanded builds selected to run.
	// Only valid if Prepared is set.
	Expanded []Build `toml:"-" yaml:"-"`
	Prepared bool    `toml:"-" yaml:"-"`
}

func (r *Release) Init() error {
	if r.Name == "" {
		return model.NewConfigError("releases", fmt.Errorf("release has no name"))
	}
	what := fmt.Sprintf("releases: %q", r.Name)

	if r.DistFolder == "" {
		r.DistFolder = "dist"
	}

	if len(r.Builds) == 0 {
		return model.NewConfigError(what, fmt.Errorf("release has no builds"))
	}

	seen := make(map[string]bool)
	for i := range r.Builds {
		if err := r.Builds[i].Init(); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		name := r.Builds[i].Name
		if seen[name] {
			return model.NewConfigError(what, fmt.Errorf("duplicate build name %q", name))
		}
		seen[name] = true
	}

	if r.Checksum != nil {
		if err := r.Checksum.Init(); err != nil {
			return model.NewConfigError(what, err)
		}
	}

	if err := r.Targets.Init(); err != nil {
		return model.NewConfigError(what, err)
	}

	return nil
}

// ChecksumsPath returns the path to the checksum manifest.
func (r Release) ChecksumsPath() string {
	return filepath.Join(r.DistFolder, ChecksumsFilename)
}

type Checksum struct {
	Algorithm string `toml:"algorithm" yaml:"algorithm"`

	AlgorithmParsed checksumtypes.Algorithm `toml:"-" yaml:"-"`
}

func (c *Checksum) Init() error {
	if c.Algorithm == "" {
		c.Algorithm = checksumtypes.SHA256.String()
	}
	var err error
	if c.AlgorithmParsed, err = checksumtypes.Parse(c.Algorithm); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	return nil
}

// Hooks are shell commands run once per release.
type Hooks struct {
	// Before runs before any build starts.
	Before []string `toml:"before" yaml:"before"`

	// After runs after a successful publish.
	After []string `toml:"after" yaml:"after"`
}
