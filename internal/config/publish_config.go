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

	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
)

// Targets configures where a release gets published.
// A nil target is not published to.
type Targets struct {
	GitHub *GitHub `toml:"github" yaml:"github"`
	GitLab *GitLab `toml:"gitlab" yaml:"gitlab"`
	Docker *Docker `toml:"docker" yaml:"docker"`
	S3     *S3     `toml:"s3" yaml:"s3"`
}

func (t *Targets) Init() error {
	if t.GitHub != nil {
		if t.GitHub.Owner == "" || t.GitHub.Repo == "" {
			return fmt.Errorf("targets: github: owner and repo must be set")
		}
	}
	if t.GitLab != nil {
		if t.GitLab.Owner == "" || t.GitLab.Repo == "" {
			return fmt.Errorf("targets: gitlab: owner and repo must be set")
		}
		if t.GitLab.URL == "" {
			t.GitLab.URL = "https://gitlab.com"
		}
	}
	if t.Docker != nil {
		if t.Docker.Image == "" {
			return fmt.Errorf("targets: docker: image must be set")
		}
		if t.Docker.Context == "" {
			t.Docker.Context = "."
		}
		if t.Docker.Dockerfile == "" {
			t.Docker.Dockerfile = "Dockerfile"
		}
	}
	if t.S3 != nil {
		if t.S3.Bucket == "" {
			return fmt.Errorf("targets: s3: bucket must be set")
		}
		if t.S3.Endpoint == "" {
			t.S3.Endpoint = "s3.amazonaws.com"
		}
	}
	return nil
}

// Types returns the configured publish types in a stable order.
func (t Targets) Types() []publishtypes.Type {
	var types []publishtypes.Type
	if t.GitHub != nil {
		types = append(types, publishtypes.GitHub)
	}
	if t.GitLab != nil {
		types = append(types, publishtypes.GitLab)
	}
	if t.Docker != nil {
		types = append(types, publishtypes.Docker)
	}
	if t.S3 != nil {
		types = append(types, publishtypes.S3)
	}
	return types
}

type GitHub struct {
	Owner string `toml:"owner" yaml:"owner"`
	Repo  string `toml:"repo" yaml:"repo"`

	// Release name template, defaults to the tag.
	Name       string `toml:"name" yaml:"name"`
	Draft      bool   `toml:"draft" yaml:"draft"`
	Prerelease bool   `toml:"prerelease" yaml:"prerelease"`

	// ReleaseNotesFile, if set, is used as the release body instead of the changelog.
	ReleaseNotesFile string `toml:"release_notes_file" yaml:"release_notes_file"`
}

type GitLab struct {
	Owner string `toml:"owner" yaml:"owner"`
	Repo  string `toml:"repo" yaml:"repo"`
	URL   string `toml:"url" yaml:"url"`
}

type Docker struct {
	Image      string `toml:"image" yaml:"image"`
	Context    string `toml:"context" yaml:"context"`
	Dockerfile string `toml:"dockerfile" yaml:"dockerfile"`

	// Also push the image tags produced by buildx builds.
	PushBuildTags bool `toml:"push_build_tags" yaml:"push_build_tags"`
}

type S3 struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Region   string `toml:"region" yaml:"region"`
	Bucket   string `toml:"bucket" yaml:"bucket"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
}
