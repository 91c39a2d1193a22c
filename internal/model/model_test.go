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

package model

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFromMap(t *testing.T) {
	c := qt.New(t)

	type meta struct {
		Maintainer string
		Epoch      string
		Priority   int
	}

	m, err := FromMap[meta](map[string]any{"maintainer": "bep", "epoch": 2, "priority": "3"})
	c.Assert(err, qt.IsNil)
	c.Assert(m, qt.DeepEquals, meta{Maintainer: "bep", Epoch: "2", Priority: 3})
}

func TestTemplateContext(t *testing.T) {
	c := qt.New(t)

	meta := TemplateMeta{Tag: "v1.2.3", Date: "2026-01-02"}
	bm := meta.ForBuild()
	bm.Os = "linux"
	bm.Matrix["os"] = "linux"

	ctx := NewTemplateContext(bm)
	c.Assert(ctx.Meta.Tag, qt.Equals, "v1.2.3")
	c.Assert(ctx.Meta.Matrix["os"], qt.Equals, "linux")
	c.Assert(ctx.Date, qt.Equals, "2026-01-02")
	c.Assert(ctx.Env, qt.IsNotNil)
}

func TestConfigError(t *testing.T) {
	c := qt.New(t)

	inner := errors.New("axis \"os\" has no values")
	err := NewConfigError("builds: linux", inner)
	c.Assert(err, qt.ErrorMatches, `builds: linux: axis "os" has no values`)
	c.Assert(errors.Is(err, inner), qt.IsTrue)
}
