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

	"github.com/rlsr/rlsr/internal/common/matchers"
	"github.com/rlsr/rlsr/internal/model"
)

var _ model.Initializer = (*Config)(nil)

type Config struct {
	Project string `toml:"project" yaml:"project"`

	// Defaults applied to every build in every release.
	BuildDefaults Build `toml:"build_defaults" yaml:"build_defaults"`

	Changelog Changelog `toml:"changelog" yaml:"changelog"`

	Releases []Release `toml:"releases" yaml:"releases"`
}

func (c *Config) Init() error {
	if len(c.Releases) == 0 {
		return model.NewConfigError("releases", fmt.Errorf("no releases configured"))
	}
	seen := make(map[string]bool)
	for i := range c.Releases {
		if err := c.Releases[i].Init(); err != nil {
			return err
		}
		if seen[c.Releases[i].Name] {
			return model.NewConfigError("releases", fmt.Errorf("duplicate release name %q", c.Releases[i].Name))
		}
		seen[c.Releases[i].Name] = true
	}
	return c.Changelog.Init()
}

// FindReleases returns the releases with a name matching filter.
func (c Config) FindReleases(filter matchers.Matcher) []Release {
	var releases []Release
	for _, release := range c.Releases {
		if filter == nil || filter.Match(release.Name) {
			releases = append(releases, release)
		}
	}
	return releases
}

// Changelog configures the release notes created from the git log.
type Changelog struct {
	// Template is a path to a Go template file.
	// The embedded default is used if not set.
	Template string `toml:"template" yaml:"template"`

	// Exclude commits with a subject matching any of these glob patterns.
	Exclude []string `toml:"exclude" yaml:"exclude"`

	ExcludeCompiled matchers.Matcher `toml:"-" yaml:"-"`
}

func (c *Changelog) Init() error {
	if len(c.Exclude) == 0 {
		return nil
	}
	var ms []matchers.Matcher
	for _, p := range c.Exclude {
		m, err := matchers.Glob(p)
		if err != nil {
			return model.NewConfigError("changelog", fmt.Errorf("exclude pattern %q: %w", p, err))
		}
		ms = append(ms, m)
	}
	c.ExcludeCompiled = matchers.Or(ms...)
	return nil
}
