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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rlsr/rlsr/internal/common/matchers"
)

func TestCompilePaths(t *testing.T) {
	c := qt.New(t)

	checkMatchesEverything := func(core *Core) bool {
		for _, m := range []matchers.Matcher{core.PathsBuildsCompiled, core.PathsReleasesCompiled} {
			if !m.Match("aasdfasd32dfasdfasdf") {
				return false
			}
		}
		return true
	}

	for _, test := range []struct {
		name   string
		paths  []string
		assert func(c *qt.C, core *Core)
	}{
		{
			name:  "empty",
			paths: []string{},
			assert: func(c *qt.C, core *Core) {
				c.Assert(checkMatchesEverything(core), qt.IsTrue)
			},
		},
		{
			name:  "double asterisk",
			paths: []string{"**"},
			assert: func(c *qt.C, core *Core) {
				c.Assert(checkMatchesEverything(core), qt.IsTrue)
			},
		},
		{
			name:  "match some builds",
			paths: []string{"builds/linux*"},
			assert: func(c *qt.C, core *Core) {
				c.Assert(core.PathsBuildsCompiled.Match("linux-amd64"), qt.IsTrue)
				c.Assert(core.PathsBuildsCompiled.Match("darwin-arm64"), qt.IsFalse)
				c.Assert(core.PathsReleasesCompiled.Match("main"), qt.IsTrue)
			},
		},
		{
			name:  "match some releases",
			paths: []string{"releases/main*"},
			assert: func(c *qt.C, core *Core) {
				c.Assert(core.PathsReleasesCompiled.Match("main"), qt.IsTrue)
				c.Assert(core.PathsReleasesCompiled.Match("nightly"), qt.IsFalse)
				c.Assert(core.PathsBuildsCompiled.Match("linux-amd64"), qt.IsTrue)
			},
		},
		{
			name:  "match some builds and releases",
			paths: []string{"releases/main*", "builds/linux*"},
			assert: func(c *qt.C, core *Core) {
				c.Assert(core.PathsReleasesCompiled.Match("mainline"), qt.IsTrue)
				c.Assert(core.PathsReleasesCompiled.Match("nightly"), qt.IsFalse)
				c.Assert(core.PathsBuildsCompiled.Match("windows-amd64"), qt.IsFalse)
			},
		},
		{
			name:  "repeated build paths",
			paths: []string{"builds/linux*", "builds/darwin*"},
			assert: func(c *qt.C, core *Core) {
				c.Assert(core.PathsBuildsCompiled.Match("linux-amd64"), qt.IsTrue)
				c.Assert(core.PathsBuildsCompiled.Match("darwin-arm64"), qt.IsTrue)
				c.Assert(core.PathsBuildsCompiled.Match("windows-amd64"), qt.IsFalse)
			},
		},
	} {
		c.Run(test.name, func(c *qt.C) {
			core := &Core{
				Paths: test.paths,
			}
			c.Assert(core.compilePaths(), qt.IsNil)
			test.assert(c, core)
		})
	}

	c.Assert((&Core{Paths: []string{"/**"}}).compilePaths(), qt.Not(qt.IsNil))
	c.Assert((&Core{Paths: []string{"archives/**"}}).compilePaths(), qt.ErrorMatches, `path "archives/\*\*" must start with builds/ or releases/`)
}

const testConfig = `
project = "myapp"

[[releases]]
name = "main"

[[releases.builds]]
name = "linux"
command = "true"

[[releases]]
name = "nightly"

[[releases.builds]]
name = "linux"
command = "true"
`

func newTestCore(c *qt.C, filename, content string) (*Core, *bytes.Buffer) {
	dir := c.TB.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644), qt.IsNil)
	var out bytes.Buffer
	return &Core{
		ProjectDir: dir,
		ConfigFile: DefaultConfigFile,
		NumWorkers: 2,
		Stdout:     &out,
		Stderr:     &out,
	}, &out
}

func TestInit(t *testing.T) {
	c := qt.New(t)

	core, out := newTestCore(c, DefaultConfigFile, testConfig)
	core.Paths = stringFlags{"releases/main"}
	c.Assert(core.Init(), qt.IsNil)
	c.Assert(core.Close(), qt.IsNil)

	c.Assert(core.Config.Project, qt.Equals, "myapp")
	c.Assert(core.RunID, qt.Not(qt.Equals), "")
	c.Assert(core.Git.IsRepo, qt.IsFalse)
	c.Assert(core.Meta.Tag, qt.Equals, "v0.0.0")
	c.Assert(core.Meta.ProjectName, qt.Equals, "myapp")
	c.Assert(core.Meta.IsSnapshot, qt.IsTrue)
	c.Assert(core.Releases(), qt.HasLen, 1)
	c.Assert(core.Releases()[0].Name, qt.Equals, "main")
	c.Assert(out.String(), qt.Contains, "Project myapp")

	c.Run("Tag flag", func(c *qt.C) {
		core, _ := newTestCore(c, DefaultConfigFile, testConfig)
		core.Tag = "v1.3.0-beta.1"
		c.Assert(core.Init(), qt.IsNil)
		c.Assert(core.Meta.Tag, qt.Equals, "v1.3.0-beta.1")
		c.Assert(core.Meta.Minor, qt.Equals, uint64(3))
		c.Assert(core.Meta.IsPrerelease, qt.IsTrue)
	})

	c.Run("YAML fallback", func(c *qt.C) {
		core, _ := newTestCore(c, "rlsr.yaml", `
project: myyamlapp
releases:
  - name: main
    builds:
      - name: linux
        command: "true"
`)
		c.Assert(core.Init(), qt.IsNil)
		c.Assert(filepath.Base(core.ConfigFile), qt.Equals, "rlsr.yaml")
		c.Assert(core.Config.Project, qt.Equals, "myyamlapp")
	})

	c.Run("Unknown field", func(c *qt.C) {
		core, _ := newTestCore(c, DefaultConfigFile, testConfig+"\nfoo = 1\n")
		c.Assert(core.Init(), qt.ErrorMatches, `(?s)error decoding config file.*`)
	})

	c.Run("Missing config", func(c *qt.C) {
		core, _ := newTestCore(c, "other.toml", testConfig)
		c.Assert(core.Init(), qt.ErrorMatches, `error decoding config file .*rlsr.toml.*`)
	})

	c.Run("Metrics file", func(c *qt.C) {
		core, _ := newTestCore(c, DefaultConfigFile, testConfig)
		core.MetricsFile = filepath.Join(c.TB.TempDir(), "rlsr.prom")
		c.Assert(core.Init(), qt.IsNil)
		c.Assert(core.Metrics, qt.Not(qt.IsNil))
		core.Metrics.ObserveBuild("main", 0, nil)
		c.Assert(core.Close(), qt.IsNil)
		_, err := os.Stat(core.MetricsFile)
		c.Assert(err, qt.IsNil)
	})
}
